package graph

import (
	"slices"

	"github.com/born-ml/agents/internal/tensor"
	. "github.com/gomlx/exceptions" //nolint:revive // Panicf reads better unqualified, as in gomlx.
)

// Placeholder creates an input fed when a compiled Function is called.
// Dimensions may be Dynamic.
func (g *Graph) Placeholder(dtype tensor.DataType, shape Shape, name string) Output {
	for i, d := range shape {
		if d != Dynamic && d <= 0 {
			Panicf("Placeholder(%q): invalid dimension %d at axis %d", name, d, i)
		}
	}
	if name == "" {
		name = "placeholder"
	}
	return g.addNode(OpPlaceholder, name, shape.Clone(), dtype, attributes{})
}

// Const embeds a copy of value in the graph.
func (g *Graph) Const(value *tensor.RawTensor, name string) Output {
	return g.addNode(OpConst, name, ShapeOf(value.Shape()), value.DType(), attributes{value: value.Clone()})
}

// Scalar creates a rank-0 constant.
func (g *Graph) Scalar(dtype tensor.DataType, v float64) Output {
	return g.Const(tensor.Scalar(v, dtype), "")
}

// Variable creates a variable initialized by evaluating init right away.
// init must not depend on placeholders.
func (g *Graph) Variable(name string, init Output) Output {
	sameGraph(OpVariable, init)
	if init.Node.graph != g {
		Panicf("Variable(%q): initializer belongs to graph %q", name, init.Node.graph.name)
	}
	value, err := g.Eval(init)
	if err != nil {
		Panicf("Variable(%q): failed to evaluate initializer: %+v", name, err)
	}
	return g.VariableFromValue(name, value)
}

// VariableFromValue creates a variable holding a copy of value.
func (g *Graph) VariableFromValue(name string, value *tensor.RawTensor) Output {
	if name == "" {
		name = "variable"
	}
	v := g.addNode(OpVariable, name, ShapeOf(value.Shape()), value.DType(), attributes{})
	g.variables = append(g.variables, v.Node)
	g.values[v.Node] = value.Clone()
	return v
}

func binaryOp(op OpType, a, b Output) Output {
	g := sameGraph(op, a, b)
	if a.DType() != b.DType() {
		Panicf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType())
	}
	if !a.DType().IsFloat() {
		Panicf("%s: unsupported dtype %s", op, a.DType())
	}
	shape, err := broadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		Panicf("%s: %v", op, err)
	}
	return g.addNode(op, "", shape, a.DType(), attributes{}, a, b)
}

// Add returns a + b with broadcasting.
func Add(a, b Output) Output { return binaryOp(OpAdd, a, b) }

// Sub returns a - b with broadcasting.
func Sub(a, b Output) Output { return binaryOp(OpSub, a, b) }

// Mul returns a * b with broadcasting.
func Mul(a, b Output) Output { return binaryOp(OpMul, a, b) }

// Div returns a / b with broadcasting.
func Div(a, b Output) Output { return binaryOp(OpDiv, a, b) }

// Maximum returns the element-wise maximum with broadcasting.
func Maximum(a, b Output) Output { return binaryOp(OpMaximum, a, b) }

// Minimum returns the element-wise minimum with broadcasting.
func Minimum(a, b Output) Output { return binaryOp(OpMinimum, a, b) }

// Pow returns a^b with broadcasting.
func Pow(a, b Output) Output { return binaryOp(OpPow, a, b) }

func unaryOp(op OpType, x Output) Output {
	g := sameGraph(op, x)
	if !x.DType().IsFloat() {
		Panicf("%s: unsupported dtype %s", op, x.DType())
	}
	return g.addNode(op, "", x.Shape().Clone(), x.DType(), attributes{}, x)
}

// Neg returns -x.
func Neg(x Output) Output { return unaryOp(OpNeg, x) }

// Exp returns e^x.
func Exp(x Output) Output { return unaryOp(OpExp, x) }

// Log returns the natural logarithm of x.
func Log(x Output) Output { return unaryOp(OpLog, x) }

// Sqrt returns the square root of x.
func Sqrt(x Output) Output { return unaryOp(OpSqrt, x) }

// Square returns x².
func Square(x Output) Output { return unaryOp(OpSquare, x) }

// Abs returns |x|.
func Abs(x Output) Output { return unaryOp(OpAbs, x) }

// Sign returns -1, 0 or 1.
func Sign(x Output) Output { return unaryOp(OpSign, x) }

// Relu returns max(x, 0).
func Relu(x Output) Output { return unaryOp(OpRelu, x) }

// Sigmoid returns 1 / (1 + e^-x).
func Sigmoid(x Output) Output { return unaryOp(OpSigmoid, x) }

// Tanh returns the hyperbolic tangent of x.
func Tanh(x Output) Output { return unaryOp(OpTanh, x) }

// Softplus returns log(1 + e^x).
func Softplus(x Output) Output { return unaryOp(OpSoftplus, x) }

func compareOp(op OpType, a, b Output) Output {
	g := sameGraph(op, a, b)
	if a.DType() != b.DType() {
		Panicf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType())
	}
	shape, err := broadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		Panicf("%s: %v", op, err)
	}
	return g.addNode(op, "", shape, tensor.Bool, attributes{}, a, b)
}

// Greater returns the bool tensor a > b.
func Greater(a, b Output) Output { return compareOp(OpGreater, a, b) }

// GreaterEqual returns the bool tensor a >= b.
func GreaterEqual(a, b Output) Output { return compareOp(OpGreaterEqual, a, b) }

// Less returns the bool tensor a < b.
func Less(a, b Output) Output { return compareOp(OpLess, a, b) }

// LessEqual returns the bool tensor a <= b.
func LessEqual(a, b Output) Output { return compareOp(OpLessEqual, a, b) }

// Equal returns the bool tensor a == b.
func Equal(a, b Output) Output { return compareOp(OpEqual, a, b) }

// Where selects onTrue where condition holds and onFalse elsewhere.
func Where(condition, onTrue, onFalse Output) Output {
	g := sameGraph(OpWhere, condition, onTrue, onFalse)
	if condition.DType() != tensor.Bool {
		Panicf("Where: condition must be bool, got %s", condition.DType())
	}
	if onTrue.DType() != onFalse.DType() {
		Panicf("Where: dtype mismatch %s vs %s", onTrue.DType(), onFalse.DType())
	}
	shape, err := broadcastShapes(onTrue.Shape(), onFalse.Shape())
	if err == nil {
		shape, err = broadcastShapes(condition.Shape(), shape)
	}
	if err != nil {
		Panicf("Where: %v", err)
	}
	return g.addNode(OpWhere, "", shape, onTrue.DType(), attributes{}, condition, onTrue, onFalse)
}

// Cast converts x to dtype.
func Cast(x Output, dtype tensor.DataType) Output {
	g := sameGraph(OpCast, x)
	if x.DType() == dtype {
		return x
	}
	return g.addNode(OpCast, "", x.Shape().Clone(), dtype, attributes{dtype: dtype}, x)
}

// MatMul multiplies two rank-2 tensors: (m, k) x (k, n) -> (m, n).
func MatMul(a, b Output) Output {
	g := sameGraph(OpMatMul, a, b)
	if a.Shape().Rank() != 2 || b.Shape().Rank() != 2 {
		Panicf("MatMul: only rank-2 operands are supported, got %s and %s", a.Shape(), b.Shape())
	}
	if a.DType() != b.DType() {
		Panicf("MatMul: dtype mismatch %s vs %s", a.DType(), b.DType())
	}
	k, kAlt := a.Shape()[1], b.Shape()[0]
	if k != Dynamic && kAlt != Dynamic && k != kAlt {
		Panicf("MatMul: contracting dimensions differ: %s x %s", a.Shape(), b.Shape())
	}
	return g.addNode(OpMatMul, "", Shape{a.Shape()[0], b.Shape()[1]}, a.DType(), attributes{}, a, b)
}

// Transpose permutes the axes of x. With no permutation, axes are reversed.
func Transpose(x Output, permutation ...int) Output {
	g := sameGraph(OpTranspose, x)
	rank := x.Shape().Rank()
	if len(permutation) == 0 {
		permutation = make([]int, rank)
		for i := range permutation {
			permutation[i] = rank - 1 - i
		}
	}
	if len(permutation) != rank {
		Panicf("Transpose: permutation %v does not match rank %d", permutation, rank)
	}
	perm := make([]int, rank)
	seen := make([]bool, rank)
	shape := make(Shape, rank)
	for i, axis := range permutation {
		axis = normalizeAxis(OpTranspose, axis, rank)
		if seen[axis] {
			Panicf("Transpose: axis %d repeated in %v", axis, permutation)
		}
		seen[axis] = true
		perm[i] = axis
		shape[i] = x.Shape()[axis]
	}
	return g.addNode(OpTranspose, "", shape, x.DType(), attributes{axes: perm}, x)
}

// Reshape changes the shape of x. At most one dimension may be Dynamic and it
// is resolved at run time from the number of elements.
func Reshape(x Output, dims ...int) Output {
	g := sameGraph(OpReshape, x)
	dynamic := 0
	known := 1
	for _, d := range dims {
		switch {
		case d == Dynamic:
			dynamic++
		case d > 0:
			known *= d
		default:
			Panicf("Reshape: invalid dimension %d in %v", d, dims)
		}
	}
	if dynamic > 1 {
		Panicf("Reshape: at most one dynamic dimension allowed, got %v", dims)
	}
	shape := Shape(slices.Clone(dims))
	if x.Shape().IsFullyDefined() {
		total := x.Shape().Concrete().NumElements()
		if dynamic == 1 {
			if total%known != 0 {
				Panicf("Reshape: cannot reshape %s into %v", x.Shape(), dims)
			}
			shape[slices.Index(dims, Dynamic)] = total / known
		} else if total != known {
			Panicf("Reshape: cannot reshape %s into %v", x.Shape(), dims)
		}
	}
	return g.addNode(OpReshape, "", shape, x.DType(), attributes{shape: slices.Clone(dims)}, x)
}

// ExpandDims inserts size-1 axes at the given positions of the result.
func ExpandDims(x Output, axes ...int) Output {
	g := sameGraph(OpExpandDims, x)
	rank := x.Shape().Rank() + len(axes)
	inserted := make([]bool, rank)
	norm := make([]int, 0, len(axes))
	for _, axis := range axes {
		axis = normalizeAxis(OpExpandDims, axis, rank)
		if inserted[axis] {
			Panicf("ExpandDims: axis %d repeated in %v", axis, axes)
		}
		inserted[axis] = true
		norm = append(norm, axis)
	}
	slices.Sort(norm)
	shape := make(Shape, 0, rank)
	src := 0
	for i := 0; i < rank; i++ {
		if inserted[i] {
			shape = append(shape, 1)
		} else {
			shape = append(shape, x.Shape()[src])
			src++
		}
	}
	return g.addNode(OpExpandDims, "", shape, x.DType(), attributes{axes: norm}, x)
}

// Softmax normalizes x along axis.
func Softmax(x Output, axis int) Output {
	g := sameGraph(OpSoftmax, x)
	if !x.DType().IsFloat() {
		Panicf("Softmax: unsupported dtype %s", x.DType())
	}
	axis = normalizeAxis(OpSoftmax, axis, x.Shape().Rank())
	return g.addNode(OpSoftmax, "", x.Shape().Clone(), x.DType(), attributes{axis: axis}, x)
}

func reduceOp(op OpType, x Output, axes []int, keepDims bool) Output {
	g := sameGraph(op, x)
	if !x.DType().IsFloat() {
		Panicf("%s: unsupported dtype %s", op, x.DType())
	}
	rank := x.Shape().Rank()
	reduced := make([]bool, rank)
	if len(axes) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
	}
	for _, axis := range axes {
		reduced[normalizeAxis(op, axis, rank)] = true
	}
	var norm []int
	shape := Shape{}
	for i, d := range x.Shape() {
		switch {
		case reduced[i]:
			norm = append(norm, i)
			if keepDims {
				shape = append(shape, 1)
			}
		default:
			shape = append(shape, d)
		}
	}
	return g.addNode(op, "", shape, x.DType(), attributes{axes: norm, keepDims: keepDims}, x)
}

// ReduceSum sums over axes; no axes means all axes.
func ReduceSum(x Output, keepDims bool, axes ...int) Output {
	return reduceOp(OpReduceSum, x, axes, keepDims)
}

// ReduceMean averages over axes; no axes means all axes.
func ReduceMean(x Output, keepDims bool, axes ...int) Output {
	return reduceOp(OpReduceMean, x, axes, keepDims)
}

// ReduceMax takes the maximum over axes; no axes means all axes.
func ReduceMax(x Output, keepDims bool, axes ...int) Output {
	return reduceOp(OpReduceMax, x, axes, keepDims)
}

// StopGradient returns x unchanged, but Gradients does not propagate through it.
func StopGradient(x Output) Output {
	g := sameGraph(OpStopGradient, x)
	return g.addNode(OpStopGradient, "", x.Shape().Clone(), x.DType(), attributes{}, x)
}

// Identity returns x unchanged, under a new name.
func Identity(x Output, name string) Output {
	g := sameGraph(OpIdentity, x)
	return g.addNode(OpIdentity, name, x.Shape().Clone(), x.DType(), attributes{}, x)
}

// ZerosLike returns zeros with the shape and dtype of x.
func ZerosLike(x Output) Output {
	g := sameGraph(OpZerosLike, x)
	return g.addNode(OpZerosLike, "", x.Shape().Clone(), x.DType(), attributes{}, x)
}

// OnesLike returns ones with the shape and dtype of x.
func OnesLike(x Output) Output {
	g := sameGraph(OpOnesLike, x)
	return g.addNode(OpOnesLike, "", x.Shape().Clone(), x.DType(), attributes{}, x)
}

func (g *Graph) randomOp(op OpType, shape tensor.Shape, dtype tensor.DataType, a, b float64) Output {
	if !dtype.IsFloat() {
		Panicf("%s: unsupported dtype %s", op, dtype)
	}
	if err := shape.Validate(); err != nil {
		Panicf("%s: %v", op, err)
	}
	return g.addNode(op, "", ShapeOf(shape), dtype, attributes{shape: slices.Clone(shape), dtype: dtype, a: a, b: b})
}

// RandomNormal samples N(mean, stddev²) each time it is evaluated.
func (g *Graph) RandomNormal(shape tensor.Shape, dtype tensor.DataType, mean, stddev float64) Output {
	return g.randomOp(OpRandomNormal, shape, dtype, mean, stddev)
}

// RandomUniform samples U[minVal, maxVal) each time it is evaluated.
func (g *Graph) RandomUniform(shape tensor.Shape, dtype tensor.DataType, minVal, maxVal float64) Output {
	return g.randomOp(OpRandomUniform, shape, dtype, minVal, maxVal)
}

// TruncatedNormal samples N(mean, stddev²) truncated at two standard
// deviations each time it is evaluated.
func (g *Graph) TruncatedNormal(shape tensor.Shape, dtype tensor.DataType, mean, stddev float64) Output {
	return g.randomOp(OpTruncatedNormal, shape, dtype, mean, stddev)
}

// BroadcastLike broadcasts x to the run-time shape of like.
func BroadcastLike(x, like Output) Output {
	g := sameGraph(OpBroadcastLike, x, like)
	if _, err := broadcastShapes(x.Shape(), like.Shape()); err != nil {
		Panicf("BroadcastLike: %v", err)
	}
	return g.addNode(OpBroadcastLike, "", like.Shape().Clone(), x.DType(), attributes{}, x, like)
}

// SumLike sums x over the dimensions that were broadcast from like's
// run-time shape. It is the transpose of BroadcastLike.
func SumLike(x, like Output) Output {
	g := sameGraph(OpSumLike, x, like)
	if x.Shape().Equal(like.Shape()) && x.Shape().IsFullyDefined() {
		return x
	}
	return g.addNode(OpSumLike, "", like.Shape().Clone(), x.DType(), attributes{}, x, like)
}

// ReshapeLike reshapes x to the run-time shape of like.
func ReshapeLike(x, like Output) Output {
	g := sameGraph(OpReshapeLike, x, like)
	return g.addNode(OpReshapeLike, "", like.Shape().Clone(), x.DType(), attributes{}, x, like)
}

// ClipByValue bounds x to [minVal, maxVal].
func ClipByValue(x Output, minVal, maxVal float64) Output {
	g := sameGraph(OpMinimum, x)
	return Minimum(Maximum(x, g.Scalar(x.DType(), minVal)), g.Scalar(x.DType(), maxVal))
}

func normalizeAxis(op OpType, axis, rank int) int {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		Panicf("%s: axis %d out of range for rank %d", op, axis, rank)
	}
	return axis
}
