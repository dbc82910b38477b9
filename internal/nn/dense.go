package nn

import (
	"github.com/born-ml/agents/internal/backend"
	"github.com/born-ml/agents/internal/graph"
	"github.com/born-ml/agents/internal/tensor"
	. "github.com/gomlx/exceptions" //nolint:revive // Panicf reads better unqualified, as in gomlx.
	"k8s.io/klog/v2"
)

// DenseConfig configures a Dense layer.
type DenseConfig struct {
	Units             int
	Activation        Activation
	UseBias           bool
	KernelInitializer Initializer
	BiasInitializer   Initializer
	KernelConstraint  Constraint
	BiasConstraint    Constraint
	KernelRegularizer Regularizer
	BiasRegularizer   Regularizer

	// Name of the layer; a unique "dense_N" name is generated when empty.
	Name string
}

// DefaultDenseConfig returns the Keras defaults for a Dense layer of the given
// width: linear activation, bias, glorot_uniform kernel and zero bias.
func DefaultDenseConfig(units int) DenseConfig {
	return DenseConfig{
		Units:             units,
		Activation:        Linear,
		UseBias:           true,
		KernelInitializer: GlorotUniform(),
		BiasInitializer:   Zeros(),
	}
}

// WithActivation returns a copy of c using the named activation. It panics
// on unknown names.
func (c DenseConfig) WithActivation(name string) DenseConfig {
	act, err := ActivationByName(name)
	if err != nil {
		Panicf("dense: %v", err)
	}
	c.Activation = act
	return c
}

// WithKernelInitializer returns a copy of c using init for the kernel.
func (c DenseConfig) WithKernelInitializer(init Initializer) DenseConfig {
	c.KernelInitializer = init
	return c
}

// Dense is the fully connected layer output = activation(x @ kernel + bias).
//
// The kernel has shape [in, units] where in is the static last dimension of
// the first input; the bias has shape [units]. Both are created on the first
// Call and reused afterwards.
//
// Example:
//
//	dense := nn.NewDense(nn.DefaultDenseConfig(4).WithActivation("relu"))
//	h := dense.Call(k, x)  // x: [?, 8] -> h: [?, 4]
type Dense struct {
	config  DenseConfig
	name    string
	backend *backend.Backend
	inputs  int

	kernel *backend.Tensor
	bias   *backend.Tensor
	losses []*backend.Tensor
}

// NewDense creates a Dense layer. It panics if Units < 1.
func NewDense(config DenseConfig) *Dense {
	if config.Units < 1 {
		Panicf("dense: units must be >= 1, got %d", config.Units)
	}
	if config.Activation == nil {
		config.Activation = Linear
	}
	if config.KernelInitializer == nil {
		config.KernelInitializer = GlorotUniform()
	}
	if config.BiasInitializer == nil {
		config.BiasInitializer = Zeros()
	}
	return &Dense{config: config, name: config.Name}
}

// Name returns the layer name, empty until built unless configured.
func (d *Dense) Name() string { return d.name }

// Units returns the output width.
func (d *Dense) Units() int { return d.config.Units }

// Built reports whether the weights exist.
func (d *Dense) Built() bool { return d.kernel != nil }

// Kernel returns the kernel variable, nil before the first Call.
func (d *Dense) Kernel() *backend.Tensor { return d.kernel }

// Bias returns the bias variable, nil before the first Call or without bias.
func (d *Dense) Bias() *backend.Tensor { return d.bias }

func (d *Dense) build(k *backend.Backend, x *backend.Tensor) {
	shape := x.Shape()
	if shape.Rank() != 2 {
		Panicf("dense: input must have rank 2, got shape %s", shape)
	}
	in := shape[1]
	if in == graph.Dynamic {
		Panicf("dense: last input dimension must be known, got shape %s", shape)
	}
	if d.name == "" {
		d.name = k.UniqueName("dense")
	}
	d.backend = k
	d.inputs = in

	dtype := k.Floatx()
	d.kernel = k.VariableFrom(
		d.config.KernelInitializer(k, tensor.Shape{in, d.config.Units}, dtype), d.name+"/kernel")
	if d.config.UseBias {
		d.bias = k.VariableFrom(
			d.config.BiasInitializer(k, tensor.Shape{d.config.Units}, dtype), d.name+"/bias")
	}
	if d.config.KernelRegularizer != nil {
		d.losses = append(d.losses, d.config.KernelRegularizer(k, d.kernel))
	}
	if d.bias != nil && d.config.BiasRegularizer != nil {
		d.losses = append(d.losses, d.config.BiasRegularizer(k, d.bias))
	}
	klog.V(1).Infof("nn: built %s kernel=%s", d.name, d.kernel.Shape())
}

// Call applies the layer to x of shape [batch, in].
func (d *Dense) Call(k *backend.Backend, x *backend.Tensor) *backend.Tensor {
	if d.kernel == nil {
		d.build(k, x)
	} else {
		if k != d.backend {
			Panicf("dense: %s was built on a different backend", d.name)
		}
		if shape := x.Shape(); shape.Rank() != 2 || shape[1] != d.inputs {
			Panicf("dense: %s expects inputs of shape (?, %d), got %s", d.name, d.inputs, shape)
		}
	}

	kernel := d.kernel
	if d.config.KernelConstraint != nil {
		kernel = d.config.KernelConstraint(k, kernel)
	}
	y := k.Dot(x, kernel)
	if d.bias != nil {
		bias := d.bias
		if d.config.BiasConstraint != nil {
			bias = d.config.BiasConstraint(k, bias)
		}
		y = k.Add(y, bias)
	}
	return d.config.Activation(k, y)
}

// Weights returns [kernel, bias] (or [kernel] without bias); empty before
// the first Call.
func (d *Dense) Weights() []*backend.Tensor {
	if d.kernel == nil {
		return nil
	}
	if d.bias == nil {
		return []*backend.Tensor{d.kernel}
	}
	return []*backend.Tensor{d.kernel, d.bias}
}

// Losses returns the regularization penalties of the weights.
func (d *Dense) Losses() []*backend.Tensor { return d.losses }
