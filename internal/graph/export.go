package graph

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// GraphDef is the serializable description of a graph written by Export.
type GraphDef struct {
	Name      string        `json:"name"`
	Nodes     []NodeDef     `json:"nodes"`
	Variables []VariableDef `json:"variables"`
}

// NodeDef describes one node. Inputs are "node_name:index" references.
type NodeDef struct {
	Name   string         `json:"name"`
	Op     OpType         `json:"op"`
	Inputs []string       `json:"inputs,omitempty"`
	Shape  []int          `json:"shape"`
	DType  string         `json:"dtype"`
	Attrs  map[string]any `json:"attrs,omitempty"`
}

// VariableDef holds the current value of a variable, flattened row-major.
type VariableDef struct {
	Name   string    `json:"name"`
	Shape  []int     `json:"shape"`
	DType  string    `json:"dtype"`
	Values []float64 `json:"values"`
}

// Def builds the GraphDef of the graph in its current state.
func (g *Graph) Def() GraphDef {
	def := GraphDef{Name: g.name, Nodes: make([]NodeDef, 0, len(g.nodes))}
	for _, n := range g.nodes {
		nd := NodeDef{
			Name:  n.name,
			Op:    n.op,
			Shape: append([]int{}, n.shape...),
			DType: n.dtype.String(),
			Attrs: n.attrs.export(n.op),
		}
		for _, in := range n.inputs {
			nd.Inputs = append(nd.Inputs, in.Name())
		}
		def.Nodes = append(def.Nodes, nd)
	}
	for _, v := range g.variables {
		value := g.values[v]
		def.Variables = append(def.Variables, VariableDef{
			Name:   v.name,
			Shape:  append([]int{}, value.Shape()...),
			DType:  value.DType().String(),
			Values: value.Float64s(),
		})
	}
	return def
}

// Export writes the graph definition as indented JSON.
func (g *Graph) Export(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g.Def()); err != nil {
		return errors.Wrapf(err, "failed to export graph %q", g.name)
	}
	return nil
}

func (a attributes) export(op OpType) map[string]any {
	attrs := make(map[string]any)
	switch op {
	case OpConst:
		attrs["value"] = a.value.Float64s()
	case OpCast:
		attrs["dtype"] = a.dtype.String()
	case OpTranspose:
		attrs["perm"] = a.axes
	case OpExpandDims:
		attrs["axes"] = a.axes
	case OpReshape:
		attrs["shape"] = a.shape
	case OpSoftmax:
		attrs["axis"] = a.axis
	case OpReduceSum, OpReduceMean, OpReduceMax:
		attrs["axes"] = a.axes
		attrs["keep_dims"] = a.keepDims
	case OpRandomNormal, OpTruncatedNormal:
		attrs["shape"] = a.shape
		attrs["mean"] = a.a
		attrs["stddev"] = a.b
	case OpRandomUniform:
		attrs["shape"] = a.shape
		attrs["minval"] = a.a
		attrs["maxval"] = a.b
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
