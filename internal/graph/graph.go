// Package graph is a small symbolic computation graph: nodes are created by
// builder functions, differentiated symbolically by Gradients, and executed
// on the CPU kernels through compiled Functions.
//
// Builder functions panic (through github.com/gomlx/exceptions) when the
// graph being built is invalid, e.g. mismatched dtypes or shapes. Running a
// compiled Function returns errors instead.
//
// A Graph is not safe for concurrent use.
package graph

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/agents/internal/backend/cpu"
	"github.com/born-ml/agents/internal/parallel"
	"github.com/born-ml/agents/internal/tensor"
	. "github.com/gomlx/exceptions" //nolint:revive // Panicf reads better unqualified, as in gomlx.
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// OpType identifies the operation a Node performs.
type OpType string

// Operations understood by the executor.
const (
	OpPlaceholder     OpType = "Placeholder"
	OpConst           OpType = "Const"
	OpVariable        OpType = "Variable"
	OpAdd             OpType = "Add"
	OpSub             OpType = "Sub"
	OpMul             OpType = "Mul"
	OpDiv             OpType = "Div"
	OpMaximum         OpType = "Maximum"
	OpMinimum         OpType = "Minimum"
	OpPow             OpType = "Pow"
	OpNeg             OpType = "Neg"
	OpExp             OpType = "Exp"
	OpLog             OpType = "Log"
	OpSqrt            OpType = "Sqrt"
	OpSquare          OpType = "Square"
	OpAbs             OpType = "Abs"
	OpSign            OpType = "Sign"
	OpRelu            OpType = "Relu"
	OpSigmoid         OpType = "Sigmoid"
	OpTanh            OpType = "Tanh"
	OpSoftplus        OpType = "Softplus"
	OpGreater         OpType = "Greater"
	OpGreaterEqual    OpType = "GreaterEqual"
	OpLess            OpType = "Less"
	OpLessEqual       OpType = "LessEqual"
	OpEqual           OpType = "Equal"
	OpWhere           OpType = "Where"
	OpCast            OpType = "Cast"
	OpMatMul          OpType = "MatMul"
	OpTranspose       OpType = "Transpose"
	OpReshape         OpType = "Reshape"
	OpExpandDims      OpType = "ExpandDims"
	OpSoftmax         OpType = "Softmax"
	OpReduceSum       OpType = "ReduceSum"
	OpReduceMean      OpType = "ReduceMean"
	OpReduceMax       OpType = "ReduceMax"
	OpStopGradient    OpType = "StopGradient"
	OpIdentity        OpType = "Identity"
	OpZerosLike       OpType = "ZerosLike"
	OpOnesLike        OpType = "OnesLike"
	OpRandomNormal    OpType = "RandomNormal"
	OpRandomUniform   OpType = "RandomUniform"
	OpTruncatedNormal OpType = "TruncatedNormal"
	OpBroadcastLike   OpType = "BroadcastLike"
	OpSumLike         OpType = "SumLike"
	OpReshapeLike     OpType = "ReshapeLike"
)

// attributes holds the static parameters of a node. Only the fields relevant
// to the node's op are set.
type attributes struct {
	value    *tensor.RawTensor // Const
	dtype    tensor.DataType   // Cast, random ops
	axes     []int             // reductions, Transpose, ExpandDims
	axis     int               // Softmax
	keepDims bool              // reductions
	shape    []int             // Reshape (may hold one Dynamic), random ops
	a, b     float64           // random ops: mean/stddev or min/max
}

// Graph holds nodes and the current values of its variables.
type Graph struct {
	name      string
	nodes     []*Node
	byName    map[string]*Node
	counters  map[string]int
	variables []*Node
	values    map[*Node]*tensor.RawTensor
	rng       *rand.Rand
	backend   *cpu.CPUBackend
}

// Option configures a Graph.
type Option func(*Graph)

// WithName sets the graph name used by Export.
func WithName(name string) Option {
	return func(g *Graph) { g.name = name }
}

// WithSeed seeds the random operations of the graph, including variable
// initializers.
func WithSeed(seed int64) Option {
	return func(g *Graph) { g.rng = rand.New(rand.NewSource(seed)) } //nolint:gosec // ML sampling, not crypto.
}

// WithParallel sets the parallelism of the CPU kernels.
func WithParallel(cfg parallel.Config) Option {
	return func(g *Graph) { g.backend = cpu.NewWithConfig(cfg) }
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		name:     "graph",
		byName:   make(map[string]*Node),
		counters: make(map[string]int),
		values:   make(map[*Node]*tensor.RawTensor),
		rng:      rand.New(rand.NewSource(rand.Int63())), //nolint:gosec // ML sampling, not crypto.
		backend:  cpu.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// NumNodes returns the number of nodes created so far.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Nodes returns the nodes in creation order, which is a topological order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Variables returns the variable nodes in creation order.
func (g *Graph) Variables() []*Node { return g.variables }

// Node is one operation in the graph. Every node has exactly one output,
// referred to as Output{Node, 0}.
type Node struct {
	graph  *Graph
	id     int
	op     OpType
	name   string
	inputs []Output
	shape  Shape
	dtype  tensor.DataType
	attrs  attributes
}

// ID is the creation index of the node within its graph.
func (n *Node) ID() int { return n.id }

// Op returns the operation type.
func (n *Node) Op() OpType { return n.op }

// Name returns the unique node name.
func (n *Node) Name() string { return n.name }

// Inputs returns the node inputs.
func (n *Node) Inputs() []Output { return n.inputs }

// Graph returns the graph owning the node.
func (n *Node) Graph() *Graph { return n.graph }

// Output returns the node's output handle.
func (n *Node) Output() Output { return Output{Node: n} }

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)%s:%s", n.op, n.name, n.shape, n.dtype)
}

// Output identifies a value produced by a node: the node plus output index.
type Output struct {
	Node  *Node
	Index int
}

// IsValid reports whether o refers to a node.
func (o Output) IsValid() bool { return o.Node != nil }

// Graph returns the graph of the producing node.
func (o Output) Graph() *Graph { return o.Node.graph }

// Shape returns the symbolic shape of the value.
func (o Output) Shape() Shape { return o.Node.shape }

// DType returns the element type of the value.
func (o Output) DType() tensor.DataType { return o.Node.dtype }

// Name returns "node_name:index".
func (o Output) Name() string {
	return fmt.Sprintf("%s:%d", o.Node.name, o.Index)
}

func (o Output) String() string {
	if o.Node == nil {
		return "<invalid>"
	}
	return o.Node.String()
}

// uniqueName returns name, or name_N when name is already taken.
func (g *Graph) uniqueName(name string) string {
	if _, taken := g.byName[name]; !taken {
		return name
	}
	for {
		g.counters[name]++
		candidate := fmt.Sprintf("%s_%d", name, g.counters[name])
		if _, taken := g.byName[candidate]; !taken {
			return candidate
		}
	}
}

// NodeByName returns the node with the given name, or nil.
func (g *Graph) NodeByName(name string) *Node {
	return g.byName[name]
}

// addNode validates that inputs belong to g and registers a new node.
func (g *Graph) addNode(op OpType, name string, shape Shape, dtype tensor.DataType, attrs attributes, inputs ...Output) Output {
	for i, in := range inputs {
		if !in.IsValid() {
			Panicf("%s: input #%d is not a valid output", op, i)
		}
		if in.Node.graph != g {
			Panicf("%s: input #%d (%s) belongs to graph %q, not %q", op, i, in.Node.name, in.Node.graph.name, g.name)
		}
	}
	if name == "" {
		name = string(op)
	}
	n := &Node{
		graph:  g,
		id:     len(g.nodes),
		op:     op,
		name:   g.uniqueName(name),
		inputs: inputs,
		shape:  shape,
		dtype:  dtype,
		attrs:  attrs,
	}
	g.nodes = append(g.nodes, n)
	g.byName[n.name] = n
	if klog.V(3).Enabled() {
		klog.Infof("graph %q: added %s", g.name, n)
	}
	return n.Output()
}

// sameGraph returns the graph common to all outputs, panicking otherwise.
func sameGraph(op OpType, outputs ...Output) *Graph {
	var g *Graph
	for i, o := range outputs {
		if !o.IsValid() {
			Panicf("%s: operand #%d is not a valid output", op, i)
		}
		if g == nil {
			g = o.Node.graph
		} else if o.Node.graph != g {
			Panicf("%s: operands belong to different graphs (%q and %q)", op, g.name, o.Node.graph.name)
		}
	}
	return g
}

// Value returns a copy of the current value of a variable.
func (g *Graph) Value(v Output) (*tensor.RawTensor, error) {
	value, err := g.variableValue(v)
	if err != nil {
		return nil, err
	}
	return value.Clone(), nil
}

// SetValue replaces the value of a variable. The new value must have the
// variable's shape and dtype.
func (g *Graph) SetValue(v Output, value *tensor.RawTensor) error {
	if _, err := g.variableValue(v); err != nil {
		return err
	}
	if value.DType() != v.DType() {
		return errors.Errorf("set value of %s: dtype %s, variable has %s", v.Node.name, value.DType(), v.DType())
	}
	if !v.Shape().Accepts(value.Shape()) {
		return errors.Errorf("set value of %s: shape %v, variable has %s", v.Node.name, value.Shape(), v.Shape())
	}
	g.values[v.Node] = value.Clone()
	return nil
}

func (g *Graph) variableValue(v Output) (*tensor.RawTensor, error) {
	if !v.IsValid() || v.Node.graph != g || v.Node.op != OpVariable {
		return nil, errors.Errorf("%s is not a variable of graph %q", v, g.name)
	}
	return g.values[v.Node], nil
}
