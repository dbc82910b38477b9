package nn

import (
	"github.com/born-ml/agents/internal/backend"
)

// Loss maps predictions and targets of the same shape to a scalar.
type Loss func(k *backend.Backend, predictions, targets *backend.Tensor) *backend.Tensor

// MSE is the mean squared error: mean((predictions - targets)²).
func MSE(k *backend.Backend, predictions, targets *backend.Tensor) *backend.Tensor {
	return k.Mean(k.Square(k.Sub(predictions, targets)), false)
}

// MAE is the mean absolute error: mean(|predictions - targets|).
func MAE(k *backend.Backend, predictions, targets *backend.Tensor) *backend.Tensor {
	return k.Mean(k.Abs(k.Sub(predictions, targets)), false)
}

// Huber is quadratic for errors below delta and linear above.
func Huber(delta float64) Loss {
	return func(k *backend.Backend, predictions, targets *backend.Tensor) *backend.Tensor {
		absErr := k.Abs(k.Sub(predictions, targets))
		quadratic := k.Clip(absErr, 0, delta)
		linear := k.Sub(absErr, quadratic)
		return k.Mean(k.Add(k.MulScalar(k.Square(quadratic), 0.5), k.MulScalar(linear, delta)), false)
	}
}

// TotalLoss adds the layers' regularization losses to loss.
func TotalLoss(k *backend.Backend, loss *backend.Tensor, layers ...Layer) *backend.Tensor {
	for _, layer := range layers {
		for _, l := range layer.Losses() {
			loss = k.Add(loss, l)
		}
	}
	return loss
}
