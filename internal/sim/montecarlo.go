package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"github.com/jeongseonghan/qam-bersim/internal/modem"
)

// StopReason reports why a Monte Carlo run terminated.
type StopReason int

const (
	// StopLimit means the error or bit limit was reached.
	StopLimit StopReason = iota
	// StopCancelled means the caller cancelled the run.
	StopCancelled
)

// String returns the stop reason name.
func (r StopReason) String() string {
	switch r {
	case StopLimit:
		return "limit"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Params configures a single Monte Carlo run.
type Params struct {
	EbNoDb    float64 // Eb/N0 in dB, must be finite
	MaxErrors uint64  // stop once this many bit errors accumulate
	MaxBits   uint64  // stop once this many bits are simulated
	Seed      uint64  // random seed; 0 means time-seeded
	BlockSize int     // symbols per block; 0 means DefaultBlockSize
}

// Validate reports whether the parameters describe a runnable simulation.
func (p Params) Validate() error {
	if math.IsNaN(p.EbNoDb) || math.IsInf(p.EbNoDb, 0) {
		return fmt.Errorf("EbNo must be finite, got %v", p.EbNoDb)
	}
	if p.MaxErrors == 0 {
		return fmt.Errorf("max errors must be positive")
	}
	if p.MaxBits == 0 {
		return fmt.Errorf("max bits must be positive")
	}
	if p.BlockSize < 0 {
		return fmt.Errorf("block size must be non-negative, got %d", p.BlockSize)
	}
	return nil
}

// Result holds the outcome of a run. BER is NaN when Bits is zero, which
// happens only when the run is cancelled before the first block completes;
// callers must check Bits before trusting BER.
type Result struct {
	EbNoDb    float64
	BER       float64
	BitErrors uint64
	Bits      uint64
	Reason    StopReason
	CILow     float64 // 95% confidence interval on BER
	CIHigh    float64
}

// Progress is called with a running snapshot after every completed block.
type Progress func(Result)

// Runner estimates BER for one modulation by Monte Carlo sampling.
type Runner struct {
	Mod      modem.Modulation
	Progress Progress // optional; during Sweep it may be called concurrently
}

// Run executes the Monte Carlo loop until a limit is hit or ctx is
// cancelled. Cancellation is polled once per block, before the block is
// generated, and is a normal termination path, not an error.
func (r *Runner) Run(ctx context.Context, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	c := modem.NewConstellation(r.Mod)
	pn, err := modem.NoisePower(p.EbNoDb, c.Mod.BitsPerSymbol(), c.AvgPower())
	if err != nil {
		return Result{}, err
	}

	seed := p.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewSource(seed)
	rng := rand.New(src)
	ch := modem.NewAWGN(pn, src)

	size := p.BlockSize
	if size == 0 {
		size = DefaultBlockSize
	}
	blk := newBlock(c, size)

	res := Result{EbNoDb: p.EbNoDb, BER: math.NaN()}
	for {
		if ctx.Err() != nil {
			res.Reason = StopCancelled
			break
		}

		errs, bits := blk.run(ch, rng)
		res.BitErrors += errs
		res.Bits += bits

		if r.Progress != nil {
			r.Progress(snapshot(res))
		}

		if res.BitErrors >= p.MaxErrors || res.Bits >= p.MaxBits {
			res.Reason = StopLimit
			break
		}
	}

	return snapshot(res), nil
}

// snapshot fills in the derived BER fields without touching the counters.
func snapshot(res Result) Result {
	if res.Bits > 0 {
		res.BER = float64(res.BitErrors) / float64(res.Bits)
		res.CILow, res.CIHigh = berConfidence(res.BitErrors, res.Bits)
	}
	return res
}
