// Package backend is the Keras-style backend ("K"): the primitive tensor
// operations that layers, optimizers and trainers compose. A Backend is an
// explicit handle over one graph; every Tensor it returns belongs to it.
package backend

import (
	"fmt"
	"io"

	"github.com/born-ml/agents/internal/graph"
	"github.com/born-ml/agents/internal/parallel"
	"github.com/born-ml/agents/internal/tensor"
	. "github.com/gomlx/exceptions" //nolint:revive // Panicf reads better unqualified, as in gomlx.
	"k8s.io/klog/v2"
)

// Config holds backend settings.
type Config struct {
	Name     string           // Graph name used on export.
	Seed     int64            // Seed of random ops and initializers; 0 picks a random seed.
	FloatX   tensor.DataType  // Default float type.
	Epsilon  float64          // Fuzz factor for numeric stability.
	Parallel *parallel.Config // Kernel parallelism; nil uses the CPU defaults.
}

// DefaultConfig returns the Keras defaults: float32 and epsilon 1e-7.
func DefaultConfig() Config {
	return Config{
		Name:    "model",
		FloatX:  tensor.Float32,
		Epsilon: 1e-7,
	}
}

// Backend issues operations against one graph.
type Backend struct {
	graph   *graph.Graph
	floatx  tensor.DataType
	epsilon float64
	uids    map[string]int
}

// New creates a backend with a fresh graph.
func New(cfg Config) *Backend {
	opts := []graph.Option{graph.WithName(cfg.Name)}
	if cfg.Seed != 0 {
		opts = append(opts, graph.WithSeed(cfg.Seed))
	}
	if cfg.Parallel != nil {
		opts = append(opts, graph.WithParallel(*cfg.Parallel))
	}
	if !cfg.FloatX.IsFloat() {
		Panicf("backend: floatx must be float32 or float64, got %s", cfg.FloatX)
	}
	return &Backend{
		graph:   graph.New(opts...),
		floatx:  cfg.FloatX,
		epsilon: cfg.Epsilon,
		uids:    make(map[string]int),
	}
}

// Graph returns the underlying graph.
func (k *Backend) Graph() *graph.Graph { return k.graph }

// Floatx returns the default float type.
func (k *Backend) Floatx() tensor.DataType { return k.floatx }

// Epsilon returns the fuzz factor used to avoid divisions by zero.
func (k *Backend) Epsilon() float64 { return k.epsilon }

// UniqueName returns prefix_1, prefix_2, ... on successive calls.
func (k *Backend) UniqueName(prefix string) string {
	k.uids[prefix]++
	return fmt.Sprintf("%s_%d", prefix, k.uids[prefix])
}

// Tensor is a non-owning handle to a graph value. Tensors returned by
// Update also carry the assignment to run when a Function is called.
type Tensor struct {
	backend    *Backend
	out        graph.Output
	name       string
	assignment *graph.Update
}

func (k *Backend) wrap(out graph.Output, name string) *Tensor {
	if name == "" {
		name = out.Node.Name()
	}
	return &Tensor{backend: k, out: out, name: name}
}

// Shape returns the symbolic shape; graph.Dynamic marks unknown dimensions.
func (t *Tensor) Shape() graph.Shape { return t.out.Shape() }

// DType returns the element type.
func (t *Tensor) DType() tensor.DataType { return t.out.DType() }

// Name returns the tensor name.
func (t *Tensor) Name() string { return t.name }

// Output returns the graph node output this tensor refers to.
func (t *Tensor) Output() graph.Output { return t.out }

// Backend returns the backend that created the tensor.
func (t *Tensor) Backend() *Backend { return t.backend }

// IsVariable reports whether the tensor is a variable (a trainable weight).
func (t *Tensor) IsVariable() bool { return t.out.Node.Op() == graph.OpVariable }

// Assignment returns the variable update attached by Backend.Update, or nil.
func (t *Tensor) Assignment() *graph.Update { return t.assignment }

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%s, shape=%s, dtype=%s)", t.name, t.Shape(), t.DType())
}

// check asserts every tensor belongs to k.
func (k *Backend) check(op string, ts ...*Tensor) {
	for i, t := range ts {
		if t == nil {
			Panicf("%s: tensor #%d is nil", op, i)
		}
		if t.backend != k {
			Panicf("%s: tensor %q belongs to another backend", op, t.name)
		}
	}
}

// Placeholder creates an input tensor. Use graph.Dynamic for unknown dimensions.
func (k *Backend) Placeholder(shape graph.Shape, dtype tensor.DataType, name string) *Tensor {
	if name == "" {
		name = k.UniqueName("placeholder")
	}
	return k.wrap(k.graph.Placeholder(dtype, shape, name), name)
}

// Constant embeds value in the graph.
func (k *Backend) Constant(value *tensor.RawTensor, name string) *Tensor {
	return k.wrap(k.graph.Const(value, name), name)
}

// Scalar creates a rank-0 floatx constant.
func (k *Backend) Scalar(v float64) *Tensor {
	return k.wrap(k.graph.Scalar(k.floatx, v), "")
}

// scalarLike creates a rank-0 constant with the dtype of t.
func (k *Backend) scalarLike(t *Tensor, v float64) graph.Output {
	return k.graph.Scalar(t.DType(), v)
}

// Variable creates a variable holding a copy of value.
func (k *Backend) Variable(value *tensor.RawTensor, name string) *Tensor {
	if name == "" {
		name = k.UniqueName("variable")
	}
	v := k.graph.VariableFromValue(name, value)
	klog.V(2).Infof("backend: variable %s %v %s", v.Node.Name(), value.Shape(), value.DType())
	return k.wrap(v, v.Node.Name())
}

// VariableFrom creates a variable initialized by evaluating init once.
func (k *Backend) VariableFrom(init *Tensor, name string) *Tensor {
	k.check("VariableFrom", init)
	if name == "" {
		name = k.UniqueName("variable")
	}
	v := k.graph.Variable(name, init.out)
	klog.V(2).Infof("backend: variable %s %s %s", v.Node.Name(), v.Shape(), v.DType())
	return k.wrap(v, v.Node.Name())
}

// Eval computes t, which must not depend on placeholders.
func (k *Backend) Eval(t *Tensor) (*tensor.RawTensor, error) {
	k.check("Eval", t)
	return k.graph.Eval(t.out)
}

// GetValue returns a copy of a variable's current value.
func (k *Backend) GetValue(v *Tensor) (*tensor.RawTensor, error) {
	k.check("GetValue", v)
	return k.graph.Value(v.out)
}

// SetValue replaces a variable's value.
func (k *Backend) SetValue(v *Tensor, value *tensor.RawTensor) error {
	k.check("SetValue", v)
	return k.graph.SetValue(v.out, value)
}

// Export writes the graph definition as JSON.
func (k *Backend) Export(w io.Writer) error {
	return k.graph.Export(w)
}
