package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// SweepPoints expands a start/stop/step range into a list of Eb/N0 values.
// stop is inclusive up to floating-point slack.
func SweepPoints(start, stop, step float64) ([]float64, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive, got %v", step)
	}
	if stop < start {
		return nil, fmt.Errorf("stop %v is below start %v", stop, start)
	}

	var points []float64
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if v > stop+step/1e6 {
			break
		}
		points = append(points, v)
	}
	return points, nil
}

// Sweep runs one Monte Carlo estimate per Eb/N0 point. Points are
// independent, so they run in parallel, each with its own accumulators and
// its own seeded source (seed+i when a seed is given). Results come back in
// input order. The Runner's Progress callback, if set, is invoked once per
// completed point and may be called from multiple goroutines.
func (r *Runner) Sweep(ctx context.Context, ebNoDbs []float64, p Params) ([]Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for _, ebNo := range ebNoDbs {
		if math.IsNaN(ebNo) || math.IsInf(ebNo, 0) {
			return nil, fmt.Errorf("EbNo points must be finite, got %v", ebNo)
		}
	}

	results := make([]Result, len(ebNoDbs))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for i, ebNo := range ebNoDbs {
		wg.Add(1)
		go func(i int, ebNo float64) {
			defer wg.Done()

			pp := p
			pp.EbNoDb = ebNo
			if pp.Seed != 0 {
				pp.Seed += uint64(i)
			}

			worker := Runner{Mod: r.Mod}
			res, err := worker.Run(ctx, pp)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("point %v dB: %w", ebNo, err)
				}
				mu.Unlock()
				return
			}
			results[i] = res

			if r.Progress != nil {
				r.Progress(res)
			}
		}(i, ebNo)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
