package sim

import (
	"context"
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/jeongseonghan/qam-bersim/internal/modem"
)

func TestRun_ValidatesParams(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"nan ebno", Params{EbNoDb: math.NaN(), MaxErrors: 1, MaxBits: 1}},
		{"inf ebno", Params{EbNoDb: math.Inf(1), MaxErrors: 1, MaxBits: 1}},
		{"zero max errors", Params{EbNoDb: 10, MaxErrors: 0, MaxBits: 1}},
		{"zero max bits", Params{EbNoDb: 10, MaxErrors: 1, MaxBits: 0}},
		{"negative block size", Params{EbNoDb: 10, MaxErrors: 1, MaxBits: 1, BlockSize: -1}},
	}

	runner := Runner{Mod: modem.ModQPSK}
	for _, tt := range tests {
		if _, err := runner.Run(context.Background(), tt.p); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestRun_HighSNRQPSK(t *testing.T) {
	runner := Runner{Mod: modem.ModQPSK}
	res, err := runner.Run(context.Background(), Params{
		EbNoDb:    20,
		MaxErrors: 100,
		MaxBits:   1e6,
		Seed:      1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Reason != StopLimit {
		t.Errorf("reason = %v, want limit", res.Reason)
	}
	// 20 dB is deep in the error-free region for QPSK.
	if res.BER > 1e-4 {
		t.Errorf("ber = %v, want <= 1e-4", res.BER)
	}
	blockBits := uint64(DefaultBlockSize * modem.ModQPSK.BitsPerSymbol())
	if res.Bits%blockBits != 0 {
		t.Errorf("bits = %d, not a multiple of %d", res.Bits, blockBits)
	}
	if res.Bits > 1e6+blockBits {
		t.Errorf("bits = %d, exceeds limit plus one block", res.Bits)
	}
}

func TestRun_LowSNR16QAM(t *testing.T) {
	runner := Runner{Mod: modem.Mod16QAM}
	res, err := runner.Run(context.Background(), Params{
		EbNoDb:    0,
		MaxErrors: 100,
		MaxBits:   1e5,
		Seed:      2,
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Reason != StopLimit {
		t.Errorf("reason = %v, want limit", res.Reason)
	}
	if res.BitErrors < 100 {
		t.Errorf("errors = %d, want >= 100 (error limit should trip)", res.BitErrors)
	}
	if res.Bits >= 1e5 {
		t.Errorf("bits = %d, error limit should trip well before the bit limit", res.Bits)
	}
	if res.BER < 0.05 || res.BER > 0.3 {
		t.Errorf("ber = %v, want in [0.05, 0.3] at 0 dB", res.BER)
	}
}

func TestRun_CancelledBeforeFirstBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := Runner{Mod: modem.ModQPSK}
	res, err := runner.Run(ctx, Params{EbNoDb: 10, MaxErrors: 100, MaxBits: 1e6, Seed: 3})
	if err != nil {
		t.Fatal(err)
	}

	if res.Reason != StopCancelled {
		t.Errorf("reason = %v, want cancelled", res.Reason)
	}
	if res.Bits != 0 {
		t.Errorf("bits = %d, want 0", res.Bits)
	}
	if !math.IsNaN(res.BER) {
		t.Errorf("ber = %v, want NaN when no bits were simulated", res.BER)
	}
}

func TestRun_CancelAtBlockBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	runner := Runner{Mod: modem.ModQPSK}
	runner.Progress = func(Result) { cancel() }

	res, err := runner.Run(ctx, Params{EbNoDb: 20, MaxErrors: 1e9, MaxBits: 1e12, Seed: 4})
	if err != nil {
		t.Fatal(err)
	}

	if res.Reason != StopCancelled {
		t.Errorf("reason = %v, want cancelled", res.Reason)
	}
	blockBits := uint64(DefaultBlockSize * modem.ModQPSK.BitsPerSymbol())
	if res.Bits != blockBits {
		t.Errorf("bits = %d, want exactly one block (%d)", res.Bits, blockBits)
	}
}

func TestRun_AccumulatorsMonotonic(t *testing.T) {
	var prev Result
	runner := Runner{
		Mod: modem.Mod16QAM,
		Progress: func(r Result) {
			if r.Bits < prev.Bits || r.BitErrors < prev.BitErrors {
				t.Errorf("accumulators decreased: %+v after %+v", r, prev)
			}
			prev = r
		},
	}

	_, err := runner.Run(context.Background(), Params{
		EbNoDb:    6,
		MaxErrors: 5000,
		MaxBits:   4e5,
		Seed:      5,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRun_TerminatesWithinIterationBound(t *testing.T) {
	iterations := 0
	runner := Runner{
		Mod:      modem.ModQPSK,
		Progress: func(Result) { iterations++ },
	}

	const maxBits = 1e5
	res, err := runner.Run(context.Background(), Params{
		EbNoDb:    20,
		MaxErrors: 1e9,
		MaxBits:   maxBits,
		Seed:      6,
	})
	if err != nil {
		t.Fatal(err)
	}

	blockBits := DefaultBlockSize * modem.ModQPSK.BitsPerSymbol()
	bound := (maxBits + blockBits - 1) / blockBits
	if iterations > bound {
		t.Errorf("took %d iterations, bound is %d", iterations, bound)
	}
	if res.Reason != StopLimit {
		t.Errorf("reason = %v, want limit", res.Reason)
	}
}

func TestRun_SeedReproducible(t *testing.T) {
	runner := Runner{Mod: modem.Mod16QAM}
	p := Params{EbNoDb: 4, MaxErrors: 1000, MaxBits: 2e5, Seed: 99}

	a, err := runner.Run(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	b, err := runner.Run(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}

	if a != b {
		t.Errorf("same seed gave different results:\n%+v\n%+v", a, b)
	}
}

func TestBlock_ZeroNoiseRecoversAllSymbols(t *testing.T) {
	for _, mod := range []modem.Modulation{modem.ModQPSK, modem.Mod16QAM} {
		c := modem.NewConstellation(mod)
		src := rand.NewSource(7)
		blk := newBlock(c, DefaultBlockSize)

		errs, bits := blk.run(modem.NewAWGN(0, src), rand.New(src))
		if errs != 0 {
			t.Errorf("%s: %d bit errors on a noiseless channel", mod, errs)
		}
		if want := uint64(DefaultBlockSize * mod.BitsPerSymbol()); bits != want {
			t.Errorf("%s: bits = %d, want %d", mod, bits, want)
		}
	}
}

func TestRun_BERSanityBounds(t *testing.T) {
	// Even at very low SNR, Gray-coded minimum-distance detection keeps
	// BER well under the worst-case bound.
	tests := []struct {
		mod   modem.Modulation
		bound float64
	}{
		{modem.ModQPSK, 0.5},
		{modem.Mod16QAM, 0.75},
	}

	for _, tt := range tests {
		runner := Runner{Mod: tt.mod}
		res, err := runner.Run(context.Background(), Params{
			EbNoDb:    -5,
			MaxErrors: 1e6,
			MaxBits:   2e5,
			Seed:      8,
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.BER < 0 || res.BER > tt.bound {
			t.Errorf("%s: ber = %v, want in [0, %v]", tt.mod, res.BER, tt.bound)
		}
	}
}
