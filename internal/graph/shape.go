package graph

import (
	"fmt"
	"strings"

	"github.com/born-ml/agents/internal/tensor"
)

// Dynamic marks a dimension whose size is only known when the graph runs,
// typically the batch dimension of a placeholder.
const Dynamic = -1

// Shape is a symbolic shape. Dimensions are either positive or Dynamic.
// The rank is always known.
type Shape []int

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// IsFullyDefined reports whether no dimension is Dynamic.
func (s Shape) IsFullyDefined() bool {
	for _, d := range s {
		if d == Dynamic {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	return append(Shape{}, s...)
}

// Equal reports whether both shapes have the same rank and dimensions,
// Dynamic dimensions included.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Concrete converts a fully defined shape to a tensor.Shape.
func (s Shape) Concrete() tensor.Shape {
	if !s.IsFullyDefined() {
		panic(fmt.Sprintf("shape %s is not fully defined", s))
	}
	return tensor.Shape(s.Clone())
}

// Accepts reports whether a concrete shape can be fed where s is expected.
func (s Shape) Accepts(concrete tensor.Shape) bool {
	if len(s) != len(concrete) {
		return false
	}
	for i, d := range s {
		if d != Dynamic && d != concrete[i] {
			return false
		}
	}
	return true
}

// String renders the shape as "(?, 4)".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		if d == Dynamic {
			parts[i] = "?"
		} else {
			parts[i] = fmt.Sprint(d)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ShapeOf returns the symbolic version of a concrete shape.
func ShapeOf(s tensor.Shape) Shape {
	return Shape(append([]int{}, s...))
}

// broadcastShapes applies NumPy broadcasting to symbolic shapes.
// A Dynamic dimension broadcast against 1 stays Dynamic; against n > 1 it
// becomes n.
func broadcastShapes(a, b Shape) (Shape, error) {
	rank := max(len(a), len(b))
	out := make(Shape, rank)
	for i := 0; i < rank; i++ {
		aDim, bDim := 1, 1
		if j := len(a) - 1 - i; j >= 0 {
			aDim = a[j]
		}
		if j := len(b) - 1 - i; j >= 0 {
			bDim = b[j]
		}
		var dim int
		switch {
		case aDim == bDim:
			dim = aDim
		case aDim == 1:
			dim = bDim
		case bDim == 1:
			dim = aDim
		case aDim == Dynamic:
			dim = bDim
		case bDim == Dynamic:
			dim = aDim
		default:
			return nil, fmt.Errorf("shapes %s and %s are not broadcastable", a, b)
		}
		out[rank-1-i] = dim
	}
	return out, nil
}
