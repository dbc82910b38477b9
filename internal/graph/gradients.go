package graph

import (
	. "github.com/gomlx/exceptions" //nolint:revive // Panicf reads better unqualified, as in gomlx.
	"k8s.io/klog/v2"
)

// VJP returns the vector-Jacobian products of a node: given v, the gradient
// of the differentiated value with respect to the node's output, it returns
// one gradient per node input. An invalid Output means "no gradient".
type VJP func(node *Node, v Output) []Output

// vjpRegistry maps each differentiable op to its VJP. Ops without inputs
// (constants, variables, placeholders, random values) never need one.
var vjpRegistry = map[OpType]VJP{
	OpAdd:           addVJP,
	OpSub:           subVJP,
	OpMul:           mulVJP,
	OpDiv:           divVJP,
	OpMaximum:       maximumVJP,
	OpMinimum:       minimumVJP,
	OpPow:           powVJP,
	OpNeg:           negVJP,
	OpExp:           expVJP,
	OpLog:           logVJP,
	OpSqrt:          sqrtVJP,
	OpSquare:        squareVJP,
	OpAbs:           absVJP,
	OpSign:          noGradientVJP,
	OpRelu:          reluVJP,
	OpSigmoid:       sigmoidVJP,
	OpTanh:          tanhVJP,
	OpSoftplus:      softplusVJP,
	OpWhere:         whereVJP,
	OpCast:          castVJP,
	OpMatMul:        matMulVJP,
	OpTranspose:     transposeVJP,
	OpReshape:       reshapeVJP,
	OpExpandDims:    reshapeVJP,
	OpSoftmax:       softmaxVJP,
	OpReduceSum:     reduceSumVJP,
	OpReduceMean:    reduceMeanVJP,
	OpReduceMax:     reduceMaxVJP,
	OpIdentity:      identityVJP,
	OpZerosLike:     noGradientVJP,
	OpOnesLike:      noGradientVJP,
	OpBroadcastLike: broadcastLikeVJP,
	OpSumLike:       sumLikeVJP,
	OpReshapeLike:   reshapeVJP,
}

// RegisterVJP sets (or replaces) the VJP of an op.
func RegisterVJP(op OpType, vjp VJP) {
	vjpRegistry[op] = vjp
}

// Gradients returns the symbolic gradient of the scalar y with respect to
// each of xs, as new nodes of the graph.
//
// Gradients do not flow through StopGradient nor through integer or bool
// values. An x that y does not depend on gets a zero gradient.
func Gradients(y Output, xs ...Output) []Output {
	g := sameGraph("Gradients", append([]Output{y}, xs...)...)
	if y.Shape().Rank() != 0 {
		Panicf("Gradients: y must be a scalar, got shape %s", y.Shape())
	}
	if !y.DType().IsFloat() {
		Panicf("Gradients: y must be a float, got %s", y.DType())
	}

	// dependsOnX: nodes (up to y) through which some x influences the value.
	lastID := y.Node.id
	isX := make(map[*Node]bool, len(xs))
	for _, x := range xs {
		isX[x.Node] = true
	}
	dependsOnX := make([]bool, lastID+1)
	for id := 0; id <= lastID; id++ {
		n := g.nodes[id]
		if isX[n] {
			dependsOnX[id] = true
			continue
		}
		if n.op == OpStopGradient || !n.dtype.IsFloat() {
			continue
		}
		for _, in := range n.inputs {
			if dependsOnX[in.Node.id] {
				dependsOnX[id] = true
				break
			}
		}
	}

	adjoints := map[*Node]Output{y.Node: OnesLike(y)}
	for id := lastID; id >= 0; id-- {
		n := g.nodes[id]
		v, found := adjoints[n]
		if !found || !dependsOnX[id] {
			continue
		}
		if n.op == OpStopGradient || !n.dtype.IsFloat() || len(n.inputs) == 0 {
			continue
		}
		vjp, ok := vjpRegistry[n.op]
		if !ok {
			Panicf("Gradients: no gradient defined for op %s (node %q)", n.op, n.name)
		}
		grads := vjp(n, v)
		if len(grads) != len(n.inputs) {
			Panicf("Gradients: VJP of %s returned %d gradients for %d inputs", n.op, len(grads), len(n.inputs))
		}
		for i, in := range n.inputs {
			if !grads[i].IsValid() || !dependsOnX[in.Node.id] {
				continue
			}
			if prev, exists := adjoints[in.Node]; exists {
				adjoints[in.Node] = Add(prev, grads[i])
			} else {
				adjoints[in.Node] = grads[i]
			}
		}
	}

	results := make([]Output, len(xs))
	for i, x := range xs {
		if adj, ok := adjoints[x.Node]; ok {
			results[i] = adj
			continue
		}
		klog.V(1).Infof("Gradients: %s does not depend on %s, gradient is zero", y.Node.name, x.Node.name)
		results[i] = ZerosLike(x)
	}
	return results
}

func scalarLike(x Output, v float64) Output {
	return x.Graph().Scalar(x.DType(), v)
}

func noGradientVJP(node *Node, _ Output) []Output {
	return make([]Output, len(node.inputs))
}

func identityVJP(_ *Node, v Output) []Output {
	return []Output{v}
}

func addVJP(node *Node, v Output) []Output {
	a, b := node.inputs[0], node.inputs[1]
	return []Output{SumLike(v, a), SumLike(v, b)}
}

func subVJP(node *Node, v Output) []Output {
	a, b := node.inputs[0], node.inputs[1]
	return []Output{SumLike(v, a), SumLike(Neg(v), b)}
}

func mulVJP(node *Node, v Output) []Output {
	a, b := node.inputs[0], node.inputs[1]
	return []Output{SumLike(Mul(v, b), a), SumLike(Mul(v, a), b)}
}

// d(a/b)/db = -a/b² = -y/b.
func divVJP(node *Node, v Output) []Output {
	a, b := node.inputs[0], node.inputs[1]
	y := node.Output()
	return []Output{SumLike(Div(v, b), a), SumLike(Neg(Div(Mul(v, y), b)), b)}
}

func maximumVJP(node *Node, v Output) []Output {
	a, b := node.inputs[0], node.inputs[1]
	return selectVJP(GreaterEqual(a, b), v, a, b)
}

func minimumVJP(node *Node, v Output) []Output {
	a, b := node.inputs[0], node.inputs[1]
	return selectVJP(LessEqual(a, b), v, a, b)
}

// selectVJP routes v to a where mask holds and to b elsewhere.
func selectVJP(mask, v, a, b Output) []Output {
	zeros := ZerosLike(v)
	return []Output{SumLike(Where(mask, v, zeros), a), SumLike(Where(mask, zeros, v), b)}
}

func powVJP(node *Node, v Output) []Output {
	a, b := node.inputs[0], node.inputs[1]
	y := node.Output()
	da := Mul(v, Mul(b, Pow(a, Sub(b, scalarLike(b, 1)))))
	db := Mul(v, Mul(y, Log(a)))
	return []Output{SumLike(da, a), SumLike(db, b)}
}

func negVJP(_ *Node, v Output) []Output {
	return []Output{Neg(v)}
}

func expVJP(node *Node, v Output) []Output {
	return []Output{Mul(v, node.Output())}
}

func logVJP(node *Node, v Output) []Output {
	return []Output{Div(v, node.inputs[0])}
}

func sqrtVJP(node *Node, v Output) []Output {
	y := node.Output()
	return []Output{Div(v, Mul(scalarLike(y, 2), y))}
}

func squareVJP(node *Node, v Output) []Output {
	a := node.inputs[0]
	return []Output{Mul(v, Mul(scalarLike(a, 2), a))}
}

func absVJP(node *Node, v Output) []Output {
	return []Output{Mul(v, Sign(node.inputs[0]))}
}

func reluVJP(node *Node, v Output) []Output {
	a := node.inputs[0]
	return []Output{Where(Greater(a, scalarLike(a, 0)), v, ZerosLike(v))}
}

func sigmoidVJP(node *Node, v Output) []Output {
	y := node.Output()
	return []Output{Mul(v, Mul(y, Sub(scalarLike(y, 1), y)))}
}

func tanhVJP(node *Node, v Output) []Output {
	y := node.Output()
	return []Output{Mul(v, Sub(scalarLike(y, 1), Square(y)))}
}

func softplusVJP(node *Node, v Output) []Output {
	return []Output{Mul(v, Sigmoid(node.inputs[0]))}
}

func whereVJP(node *Node, v Output) []Output {
	cond, onTrue, onFalse := node.inputs[0], node.inputs[1], node.inputs[2]
	grads := selectVJP(cond, v, onTrue, onFalse)
	return []Output{{}, grads[0], grads[1]}
}

func castVJP(node *Node, v Output) []Output {
	a := node.inputs[0]
	if !a.DType().IsFloat() {
		return []Output{{}}
	}
	return []Output{Cast(v, a.DType())}
}

// For y = a·b: da = v·bᵀ and db = aᵀ·v.
func matMulVJP(node *Node, v Output) []Output {
	a, b := node.inputs[0], node.inputs[1]
	return []Output{MatMul(v, Transpose(b)), MatMul(Transpose(a), v)}
}

func transposeVJP(node *Node, v Output) []Output {
	perm := node.attrs.axes
	inverse := make([]int, len(perm))
	for i, axis := range perm {
		inverse[axis] = i
	}
	return []Output{Transpose(v, inverse...)}
}

// reshapeVJP serves every op whose first input is only reshaped.
func reshapeVJP(node *Node, v Output) []Output {
	grads := make([]Output, len(node.inputs))
	grads[0] = ReshapeLike(v, node.inputs[0])
	return grads
}

// For y = softmax(x): dx = y·(v - Σ(v·y)).
func softmaxVJP(node *Node, v Output) []Output {
	y := node.Output()
	dot := ReduceSum(Mul(v, y), true, node.attrs.axis)
	return []Output{Mul(y, Sub(v, dot))}
}

// keptDims gives a reduced value the rank of the reduction input back.
func keptDims(node *Node, x Output) Output {
	if node.attrs.keepDims {
		return x
	}
	return ExpandDims(x, node.attrs.axes...)
}

func reduceSumVJP(node *Node, v Output) []Output {
	a := node.inputs[0]
	return []Output{BroadcastLike(keptDims(node, v), a)}
}

func reduceMeanVJP(node *Node, v Output) []Output {
	a := node.inputs[0]
	count := ReduceSum(OnesLike(a), true, node.attrs.axes...)
	return []Output{BroadcastLike(Div(keptDims(node, v), count), a)}
}

// The gradient of a max is split evenly among the tied maxima.
func reduceMaxVJP(node *Node, v Output) []Output {
	a := node.inputs[0]
	y := keptDims(node, node.Output())
	mask := Cast(Equal(a, BroadcastLike(y, a)), a.DType())
	ties := ReduceSum(mask, true, node.attrs.axes...)
	return []Output{Mul(mask, BroadcastLike(Div(keptDims(node, v), ties), a))}
}

func broadcastLikeVJP(node *Node, v Output) []Output {
	return []Output{SumLike(v, node.inputs[0]), {}}
}

func sumLikeVJP(node *Node, v Output) []Output {
	return []Output{BroadcastLike(v, node.inputs[0]), {}}
}
