package sim

import (
	"golang.org/x/exp/rand"

	"github.com/jeongseonghan/qam-bersim/internal/modem"
)

// DefaultBlockSize is the number of symbols simulated per iteration.
const DefaultBlockSize = 10000

// block is the per-iteration unit of work. Its buffers are reused across
// iterations; contents are meaningless once the error count is extracted.
type block struct {
	c       *modem.Constellation
	indices []int
	samples []complex128
}

func newBlock(c *modem.Constellation, size int) *block {
	return &block{
		c:       c,
		indices: make([]int, size),
		samples: make([]complex128, size),
	}
}

// run simulates one block: draw uniform symbol indices, transmit through
// the channel, detect by minimum distance and count bit errors against the
// transmitted labels. Returns the block's bit-error count and bit count.
func (b *block) run(ch *modem.AWGN, rng *rand.Rand) (bitErrors, bits uint64) {
	m := b.c.Size()
	for i := range b.indices {
		idx := rng.Intn(m)
		b.indices[i] = idx
		b.samples[i] = b.c.Symbol(idx)
	}

	ch.Corrupt(b.samples)

	for i, rx := range b.samples {
		detected := b.c.DetectIndex(rx)
		bitErrors += uint64(b.c.BitErrors(b.indices[i], detected))
	}
	bits = uint64(len(b.indices) * b.c.Mod.BitsPerSymbol())
	return bitErrors, bits
}
