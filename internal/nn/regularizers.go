package nn

import (
	"github.com/born-ml/agents/internal/backend"
)

// Regularizer maps a weight to a scalar penalty added to the training loss.
type Regularizer func(k *backend.Backend, w *backend.Tensor) *backend.Tensor

// L1 penalizes l * sum(|w|).
func L1(l float64) Regularizer {
	return func(k *backend.Backend, w *backend.Tensor) *backend.Tensor {
		return k.MulScalar(k.Sum(k.Abs(w), false), l)
	}
}

// L2 penalizes l * sum(w²).
func L2(l float64) Regularizer {
	return func(k *backend.Backend, w *backend.Tensor) *backend.Tensor {
		return k.MulScalar(k.Sum(k.Square(w), false), l)
	}
}

// L1L2 penalizes l1 * sum(|w|) + l2 * sum(w²).
func L1L2(l1, l2 float64) Regularizer {
	return Combine(L1(l1), L2(l2))
}

// Combine sums the penalties of several regularizers.
func Combine(regularizers ...Regularizer) Regularizer {
	return func(k *backend.Backend, w *backend.Tensor) *backend.Tensor {
		var total *backend.Tensor
		for _, r := range regularizers {
			if r == nil {
				continue
			}
			term := r(k, w)
			if total == nil {
				total = term
			} else {
				total = k.Add(total, term)
			}
		}
		if total == nil {
			return k.Cast(k.Scalar(0), w.DType())
		}
		return total
	}
}
