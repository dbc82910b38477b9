package graph

import (
	"fmt"
	"slices"

	"github.com/born-ml/agents/internal/tensor"
	. "github.com/gomlx/exceptions" //nolint:revive // Panicf reads better unqualified, as in gomlx.
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Update assigns Value to Variable after a Function call computed its outputs.
type Update struct {
	Variable Output
	Value    Output
}

// Assign creates an update of variable to value. Shapes and dtypes must match.
func Assign(variable, value Output) *Update {
	sameGraph(OpVariable, variable, value)
	if variable.Node.op != OpVariable {
		Panicf("Assign: %s is not a variable", variable)
	}
	if variable.DType() != value.DType() {
		Panicf("Assign(%s): dtype mismatch %s vs %s", variable.Node.name, variable.DType(), value.DType())
	}
	if value.Shape().Rank() != variable.Shape().Rank() {
		Panicf("Assign(%s): shape mismatch %s vs %s", variable.Node.name, variable.Shape(), value.Shape())
	}
	for i, d := range value.Shape() {
		if d != Dynamic && d != variable.Shape()[i] {
			Panicf("Assign(%s): shape mismatch %s vs %s", variable.Node.name, variable.Shape(), value.Shape())
		}
	}
	return &Update{Variable: variable, Value: value}
}

// Function is a compiled sub-graph: feeding its inputs yields its outputs, and
// then its updates are applied to the variables.
type Function struct {
	graph   *Graph
	inputs  []Output
	outputs []Output
	updates []*Update
	order   []*Node
}

// Compile prepares a Function. Every placeholder the outputs or updates depend
// on must be listed in inputs.
func (g *Graph) Compile(inputs, outputs []Output, updates []*Update) *Function {
	fn, err := g.compile(inputs, outputs, updates)
	if err != nil {
		panic(err)
	}
	return fn
}

func (g *Graph) compile(inputs, outputs []Output, updates []*Update) (*Function, error) {
	fedInputs := make(map[*Node]bool, len(inputs))
	for i, in := range inputs {
		if !in.IsValid() || in.Node.graph != g {
			return nil, errors.Errorf("compile: input #%d is not an output of graph %q", i, g.name)
		}
		if in.Node.op != OpPlaceholder {
			return nil, errors.Errorf("compile: input #%d (%s) is not a placeholder", i, in.Node.name)
		}
		fedInputs[in.Node] = true
	}

	roots := make([]*Node, 0, len(outputs)+len(updates))
	for i, out := range outputs {
		if !out.IsValid() || out.Node.graph != g {
			return nil, errors.Errorf("compile: output #%d is not an output of graph %q", i, g.name)
		}
		roots = append(roots, out.Node)
	}
	for _, u := range updates {
		if u.Variable.Node.graph != g || u.Value.Node.graph != g {
			return nil, errors.Errorf("compile: update of %s belongs to another graph", u.Variable.Node.name)
		}
		roots = append(roots, u.Value.Node)
	}

	needed := make(map[*Node]bool)
	stack := roots
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if needed[n] {
			continue
		}
		needed[n] = true
		if n.op == OpPlaceholder && !fedInputs[n] {
			return nil, errors.Errorf("compile: placeholder %q is required but not listed as an input", n.name)
		}
		for _, in := range n.inputs {
			stack = append(stack, in.Node)
		}
	}
	order := make([]*Node, 0, len(needed))
	for n := range needed {
		order = append(order, n)
	}
	slices.SortFunc(order, func(a, b *Node) int { return a.id - b.id })

	klog.V(2).Infof("graph %q: compiled function with %d inputs, %d outputs, %d updates, %d nodes",
		g.name, len(inputs), len(outputs), len(updates), len(order))
	return &Function{
		graph:   g,
		inputs:  slices.Clone(inputs),
		outputs: slices.Clone(outputs),
		updates: slices.Clone(updates),
		order:   order,
	}, nil
}

// Inputs returns the placeholders the function expects, in order.
func (fn *Function) Inputs() []Output { return fn.inputs }

// Outputs returns the values the function returns, in order.
func (fn *Function) Outputs() []Output { return fn.outputs }

// Call feeds one concrete tensor per input and returns the outputs. Updates
// are applied after every output and update value was computed.
func (fn *Function) Call(feeds ...*tensor.RawTensor) (results []*tensor.RawTensor, err error) {
	if len(feeds) != len(fn.inputs) {
		return nil, errors.Errorf("function expects %d inputs, got %d", len(fn.inputs), len(feeds))
	}
	values := make(map[*Node]*tensor.RawTensor, len(fn.order))
	for i, feed := range feeds {
		in := fn.inputs[i]
		if feed == nil {
			return nil, errors.Errorf("input #%d (%s) is nil", i, in.Node.name)
		}
		if feed.DType() != in.DType() {
			return nil, errors.Errorf("input #%d (%s): dtype %s, expected %s", i, in.Node.name, feed.DType(), in.DType())
		}
		if !in.Shape().Accepts(feed.Shape()) {
			return nil, errors.Errorf("input #%d (%s): shape %v, expected %s", i, in.Node.name, feed.Shape(), in.Shape())
		}
		values[in.Node] = feed
	}

	exception := Try(func() {
		for _, n := range fn.order {
			if _, fed := values[n]; fed {
				continue
			}
			values[n] = fn.graph.execute(n, values)
		}
	})
	if exception != nil {
		if e, ok := exception.(error); ok {
			return nil, errors.WithMessage(e, "function call failed")
		}
		return nil, errors.Errorf("function call failed: %v", exception)
	}

	// Outputs may alias constants, variables or feeds, so callers get copies.
	results = make([]*tensor.RawTensor, len(fn.outputs))
	for i, out := range fn.outputs {
		results[i] = values[out.Node].Clone()
	}
	for _, u := range fn.updates {
		got, want := values[u.Value.Node].Shape(), fn.graph.values[u.Variable.Node].Shape()
		if !got.Equal(want) {
			return nil, errors.Errorf("update of %s: value shape %v, variable shape %v", u.Variable.Node.name, got, want)
		}
	}
	for _, u := range fn.updates {
		fn.graph.values[u.Variable.Node] = values[u.Value.Node].Clone()
	}
	return results, nil
}

// Eval computes o, which must not depend on placeholders.
func (g *Graph) Eval(o Output) (*tensor.RawTensor, error) {
	fn, err := g.compile(nil, []Output{o}, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "eval %s", o.Name())
	}
	results, err := fn.Call()
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// execute runs the kernel of n. Kernel misuse panics.
func (g *Graph) execute(n *Node, values map[*Node]*tensor.RawTensor) *tensor.RawTensor {
	in := func(i int) *tensor.RawTensor { return values[n.inputs[i].Node] }
	k := g.backend
	switch n.op {
	case OpConst:
		return n.attrs.value
	case OpVariable:
		return g.values[n]
	case OpPlaceholder:
		Panicf("placeholder %q was not fed", n.name)
	case OpAdd:
		return k.Add(in(0), in(1))
	case OpSub:
		return k.Sub(in(0), in(1))
	case OpMul:
		return k.Mul(in(0), in(1))
	case OpDiv:
		return k.Div(in(0), in(1))
	case OpMaximum:
		return k.Maximum(in(0), in(1))
	case OpMinimum:
		return k.Minimum(in(0), in(1))
	case OpPow:
		return k.Pow(in(0), in(1))
	case OpNeg:
		return k.Neg(in(0))
	case OpExp:
		return k.Exp(in(0))
	case OpLog:
		return k.Log(in(0))
	case OpSqrt:
		return k.Sqrt(in(0))
	case OpSquare:
		return k.Square(in(0))
	case OpAbs:
		return k.Abs(in(0))
	case OpSign:
		return k.Sign(in(0))
	case OpRelu:
		return k.ReLU(in(0))
	case OpSigmoid:
		return k.Sigmoid(in(0))
	case OpTanh:
		return k.Tanh(in(0))
	case OpSoftplus:
		return k.Softplus(in(0))
	case OpGreater:
		return k.Greater(in(0), in(1))
	case OpGreaterEqual:
		return k.GreaterEqual(in(0), in(1))
	case OpLess:
		return k.Less(in(0), in(1))
	case OpLessEqual:
		return k.LessEqual(in(0), in(1))
	case OpEqual:
		return k.Equal(in(0), in(1))
	case OpWhere:
		return k.Where(in(0), in(1), in(2))
	case OpCast:
		return k.Cast(in(0), n.attrs.dtype)
	case OpMatMul:
		return k.MatMul(in(0), in(1))
	case OpTranspose:
		return k.Transpose(in(0), n.attrs.axes...)
	case OpReshape:
		return k.Reshape(in(0), resolveReshape(n.attrs.shape, in(0).NumElements()))
	case OpExpandDims:
		return k.Reshape(in(0), expandedShape(in(0).Shape(), n.attrs.axes))
	case OpSoftmax:
		return k.Softmax(in(0), n.attrs.axis)
	case OpReduceSum:
		return k.ReduceSum(in(0), n.attrs.axes, n.attrs.keepDims)
	case OpReduceMean:
		return k.ReduceMean(in(0), n.attrs.axes, n.attrs.keepDims)
	case OpReduceMax:
		return k.ReduceMax(in(0), n.attrs.axes, n.attrs.keepDims)
	case OpStopGradient, OpIdentity:
		return in(0)
	case OpZerosLike:
		return tensor.Full(in(0).Shape(), 0, n.dtype)
	case OpOnesLike:
		return tensor.Full(in(0).Shape(), 1, n.dtype)
	case OpRandomNormal:
		return k.RandomNormal(g.rng, n.attrs.shape, n.dtype, n.attrs.a, n.attrs.b)
	case OpRandomUniform:
		return k.RandomUniform(g.rng, n.attrs.shape, n.dtype, n.attrs.a, n.attrs.b)
	case OpTruncatedNormal:
		return k.TruncatedNormal(g.rng, n.attrs.shape, n.dtype, n.attrs.a, n.attrs.b)
	case OpBroadcastLike:
		return k.BroadcastTo(in(0), in(1).Shape())
	case OpSumLike:
		return k.SumTo(in(0), in(1).Shape())
	case OpReshapeLike:
		return k.Reshape(in(0), in(1).Shape())
	}
	Panicf("no kernel for op %s", n.op)
	return nil
}

// resolveReshape replaces the Dynamic dimension, if any, given the element count.
func resolveReshape(dims []int, numElements int) tensor.Shape {
	shape := make(tensor.Shape, len(dims))
	known := 1
	dynamicAxis := -1
	for i, d := range dims {
		if d == Dynamic {
			dynamicAxis = i
			continue
		}
		shape[i] = d
		known *= d
	}
	if dynamicAxis >= 0 {
		if numElements%known != 0 {
			panic(fmt.Sprintf("reshape: cannot reshape %d elements into %v", numElements, Shape(dims)))
		}
		shape[dynamicAxis] = numElements / known
	}
	return shape
}

// expandedShape inserts 1s at the sorted axes of the result.
func expandedShape(shape tensor.Shape, axes []int) tensor.Shape {
	out := make(tensor.Shape, 0, len(shape)+len(axes))
	src, next := 0, 0
	for i := 0; i < len(shape)+len(axes); i++ {
		if next < len(axes) && axes[next] == i {
			out = append(out, 1)
			next++
			continue
		}
		out = append(out, shape[src])
		src++
	}
	return out
}
