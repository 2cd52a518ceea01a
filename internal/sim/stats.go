package sim

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// berConfidence returns a 95% confidence interval for the BER estimate
// errs/bits, using the normal approximation to the binomial. The interval
// is clamped to [0, 1].
func berConfidence(errs, bits uint64) (lo, hi float64) {
	n := float64(bits)
	p := float64(errs) / n

	z := distuv.UnitNormal.Quantile(0.975)
	half := z * math.Sqrt(p*(1-p)/n)

	lo = math.Max(0, p-half)
	hi = math.Min(1, p+half)
	return lo, hi
}
