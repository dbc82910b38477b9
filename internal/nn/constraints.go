package nn

import "github.com/born-ml/agents/internal/backend"

// Constraint maps a weight to its constrained version inside the forward
// graph, so gradients flow through the constraint.
type Constraint func(k *backend.Backend, w *backend.Tensor) *backend.Tensor

// norms returns the L2 norms of w along axis, keeping the reduced dimension.
func norms(k *backend.Backend, w *backend.Tensor, axis int) *backend.Tensor {
	return k.Sqrt(k.Sum(k.Square(w), true, axis))
}

// rescale returns w * desired / (epsilon + current).
func rescale(k *backend.Backend, w, desired, current *backend.Tensor) *backend.Tensor {
	return k.Mul(w, k.Div(desired, k.AddScalar(current, k.Epsilon())))
}

// MaxNorm bounds the L2 norm of the weights along axis to maxValue. For a
// Dense kernel, axis 0 constrains the incoming weights of every unit.
func MaxNorm(maxValue float64, axis int) Constraint {
	return func(k *backend.Backend, w *backend.Tensor) *backend.Tensor {
		n := norms(k, w, axis)
		return rescale(k, w, k.Clip(n, 0, maxValue), n)
	}
}

// NonNeg zeroes negative weights.
func NonNeg() Constraint {
	return func(k *backend.Backend, w *backend.Tensor) *backend.Tensor {
		return k.Mul(w, k.Cast(k.GreaterEqual(w, k.ZerosLike(w)), w.DType()))
	}
}

// UnitNorm scales the weights to unit L2 norm along axis.
func UnitNorm(axis int) Constraint {
	return func(k *backend.Backend, w *backend.Tensor) *backend.Tensor {
		return k.Div(w, k.AddScalar(norms(k, w, axis), k.Epsilon()))
	}
}

// MinMaxNorm keeps the L2 norm along axis within [minValue, maxValue].
// With rate < 1 the norm only moves that fraction of the way towards the
// interval each time.
func MinMaxNorm(minValue, maxValue, rate float64, axis int) Constraint {
	return func(k *backend.Backend, w *backend.Tensor) *backend.Tensor {
		n := norms(k, w, axis)
		desired := k.Add(
			k.MulScalar(k.Clip(n, minValue, maxValue), rate),
			k.MulScalar(n, 1-rate))
		return rescale(k, w, desired, n)
	}
}
