package opt

import "math"

// estimateGradient computes central-difference first and second derivative
// estimates of the oracle at cur, using the stencil size h as the
// perturbation:
//
//	grad = (loss(x+h) - loss(x-h)) / 2h
//	hess = (loss(x+h) + loss(x-h) - 2·loss(x)) / h²
//
// It returns a StencilError when the estimate cannot be trusted: either
// both neighbors sit at or above the center (no descent direction visible
// at this resolution) or |grad| ≤ h (below the finite-difference noise
// floor, so neither sign nor magnitude mean anything).
func estimateGradient(oracle Oracle, cur Result, h float64) (grad, hess float64, err error) {
	lossCentre := cur.Loss
	lossRight := oracle(cur.X+h, h)
	lossLeft := oracle(cur.X-h, h)

	grad = (lossRight - lossLeft) / (2 * h)
	hess = (lossRight + lossLeft - 2*lossCentre) / (h * h)

	noDescent := lossRight >= lossCentre && lossLeft >= lossCentre
	belowNoiseFloor := math.Abs(grad) <= h

	if noDescent || belowNoiseFloor {
		return 0, 0, &StencilError{X: cur.X, Stencil: h, Grad: grad}
	}
	return grad, hess, nil
}
