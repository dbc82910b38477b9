// Package optim implements graph-mode optimization algorithms.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum and Nesterov momentum
//   - Adam: Adaptive Moment Estimation
//   - RMSProp: root mean square propagation
//
// Optimizers do not touch weights directly. Updates builds the gradient and
// update sub-graph once; the returned update tensors are passed to
// backend.Function, and every call of that function performs one step.
//
// Example usage:
//
//	opt := optim.NewAdam(k, optim.AdamConfig{LR: 3e-4})
//	updates := opt.Updates(loss, model.Weights())
//	train := k.Function("train", inputs, []*backend.Tensor{loss}, updates)
//
//	for step := range steps {
//	    out, err := train.Call(batch...)
//	    ...
//	}
package optim

import (
	"math"

	"github.com/born-ml/agents/internal/backend"
	"github.com/born-ml/agents/internal/tensor"
	. "github.com/gomlx/exceptions" //nolint:revive // Panicf reads better unqualified, as in gomlx.
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Updates: build the update ops minimizing loss over params
//   - LearningRate/SetLearningRate: read and change the learning rate variable
//   - StateDict/LoadStateDict: export and restore the slot variables
type Optimizer interface {
	// Updates returns one update tensor per parameter plus the optimizer's
	// own bookkeeping updates. It may be called once per optimizer.
	Updates(loss *backend.Tensor, params []*backend.Tensor) []*backend.Tensor

	// LearningRate returns the current learning rate.
	LearningRate() float64

	// SetLearningRate changes the learning rate used by later steps.
	SetLearningRate(lr float64) error

	// StateDict returns copies of the optimizer variables keyed by name.
	StateDict() (map[string]*tensor.RawTensor, error)

	// LoadStateDict restores optimizer variables saved by StateDict.
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// Config is the base configuration shared by all optimizers.
type Config struct {
	LR float64 // Learning rate

	// MaxGradNorm rescales the gradients when their global L2 norm is larger.
	// Zero disables clipping.
	MaxGradNorm float64
}

// base holds the state common to all optimizers: the learning rate and
// iteration variables and the named slot variables.
type base struct {
	k          *backend.Backend
	name       string
	lr         *backend.Tensor
	iterations *backend.Tensor
	slots      []*backend.Tensor
	built      bool
	config     Config
}

func newBase(k *backend.Backend, name string, config Config) base {
	name = k.UniqueName(name)
	dtype := k.Floatx()
	return base{
		k:          k,
		name:       name,
		config:     config,
		lr:         k.Variable(tensor.Scalar(config.LR, dtype), name+"/learning_rate"),
		iterations: k.Variable(tensor.Scalar(0, dtype), name+"/iterations"),
	}
}

// gradients computes the (optionally clipped) gradients of loss.
func (b *base) gradients(loss *backend.Tensor, params []*backend.Tensor) []*backend.Tensor {
	if b.built {
		Panicf("%s: Updates called twice", b.name)
	}
	b.built = true
	klog.V(1).Infof("optim: %s building updates for %d parameters", b.name, len(params))
	grads := b.k.Gradients(loss, params)
	if b.config.MaxGradNorm > 0 {
		grads = ClipByGlobalNorm(b.k, grads, b.config.MaxGradNorm)
	}
	return grads
}

// slot creates a zero variable shaped like param.
func (b *base) slot(param *backend.Tensor, suffix string) *backend.Tensor {
	v := b.k.Variable(tensor.Full(param.Shape().Concrete(), 0, param.DType()),
		b.name+"/"+param.Name()+"/"+suffix)
	b.slots = append(b.slots, v)
	return v
}

// step returns the update iterations <- iterations + 1 and the incremented value.
func (b *base) step() (update, t *backend.Tensor) {
	update = b.k.UpdateAdd(b.iterations, b.k.OnesLike(b.iterations))
	return update, b.k.AddScalar(b.iterations, 1)
}

// LearningRate returns the current learning rate.
func (b *base) LearningRate() float64 {
	v, err := b.k.GetValue(b.lr)
	if err != nil {
		klog.Errorf("optim: %s: reading learning rate: %v", b.name, err)
		return math.NaN()
	}
	return v.Item()
}

// SetLearningRate changes the learning rate used by later steps.
func (b *base) SetLearningRate(lr float64) error {
	return b.k.SetValue(b.lr, tensor.Scalar(lr, b.lr.DType()))
}

// Iterations returns the number of steps taken.
func (b *base) Iterations() int {
	v, err := b.k.GetValue(b.iterations)
	if err != nil {
		return 0
	}
	return int(v.Item())
}

// LRTensor returns the learning rate variable, for use in graphs (e.g. to
// report it from a training function).
func (b *base) LRTensor() *backend.Tensor { return b.lr }

func (b *base) variables() []*backend.Tensor {
	return append([]*backend.Tensor{b.lr, b.iterations}, b.slots...)
}

// StateDict returns copies of the optimizer variables keyed by name.
func (b *base) StateDict() (map[string]*tensor.RawTensor, error) {
	state := make(map[string]*tensor.RawTensor)
	for _, v := range b.variables() {
		value, err := b.k.GetValue(v)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s: state of %s", b.name, v.Name())
		}
		state[v.Name()] = value
	}
	return state, nil
}

// LoadStateDict restores optimizer variables saved by StateDict. Missing
// entries are left unchanged; shape mismatches are errors.
func (b *base) LoadStateDict(state map[string]*tensor.RawTensor) error {
	for _, v := range b.variables() {
		value, ok := state[v.Name()]
		if !ok {
			klog.Warningf("optim: %s: no saved state for %s", b.name, v.Name())
			continue
		}
		if err := b.k.SetValue(v, value); err != nil {
			return errors.WithMessagef(err, "%s: loading %s", b.name, v.Name())
		}
	}
	return nil
}

// ClipByGlobalNorm scales all grads by min(1, maxNorm / ||grads||), where
// ||grads|| is the L2 norm of all gradients taken together.
func ClipByGlobalNorm(k *backend.Backend, grads []*backend.Tensor, maxNorm float64) []*backend.Tensor {
	if len(grads) == 0 {
		return grads
	}
	var sumSquares *backend.Tensor
	for _, g := range grads {
		s := k.Sum(k.Square(g), false)
		if sumSquares == nil {
			sumSquares = s
		} else {
			sumSquares = k.Add(sumSquares, s)
		}
	}
	norm := k.Sqrt(sumSquares)
	maxT := k.Cast(k.Scalar(maxNorm), norm.DType())
	scale := k.Div(maxT, k.Maximum(norm, maxT))
	clipped := make([]*backend.Tensor, len(grads))
	for i, g := range grads {
		clipped[i] = k.Mul(g, scale)
	}
	return clipped
}
