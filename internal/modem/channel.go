package modem

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// NoisePower converts an Eb/N0 ratio in dB into the total complex noise
// power for a signal with the given average symbol power. The result is
// split evenly between the two quadrature components by the channel.
func NoisePower(ebNoDb float64, bitsPerSymbol int, avgPower float64) (float64, error) {
	if bitsPerSymbol <= 0 {
		return 0, fmt.Errorf("bits per symbol must be positive, got %d", bitsPerSymbol)
	}
	ebNoLinear := math.Pow(10, ebNoDb/10)
	return avgPower / (ebNoLinear * float64(bitsPerSymbol)), nil
}

// AWGN models an additive white Gaussian noise channel. Each quadrature
// component receives an independent zero-mean Gaussian draw with variance
// Pn/2, for a total complex noise power of Pn.
type AWGN struct {
	Pn    float64
	noise distuv.Normal
}

// NewAWGN creates a channel with total noise power pn, drawing from src.
func NewAWGN(pn float64, src rand.Source) *AWGN {
	return &AWGN{
		Pn: pn,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: math.Sqrt(pn / 2),
			Src:   src,
		},
	}
}

// Corrupt adds noise to the transmitted samples in place, turning them
// into received samples.
func (ch *AWGN) Corrupt(samples []complex128) {
	if ch.Pn == 0 {
		return
	}
	for i := range samples {
		samples[i] += complex(ch.noise.Rand(), ch.noise.Rand())
	}
}
