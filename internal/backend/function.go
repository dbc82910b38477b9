package backend

import (
	"github.com/born-ml/agents/internal/graph"
	"github.com/born-ml/agents/internal/tensor"
	. "github.com/gomlx/exceptions" //nolint:revive // Panicf reads better unqualified, as in gomlx.
	"github.com/pkg/errors"
)

// Function is a compiled graph function: concrete inputs in, concrete
// outputs back, and the variable updates applied.
type Function struct {
	name string
	fn   *graph.Function
}

// Function compiles inputs -> outputs. Each update must come from Update.
func (k *Backend) Function(name string, inputs, outputs, updates []*Tensor) *Function {
	k.check("Function", inputs...)
	k.check("Function", outputs...)
	k.check("Function", updates...)
	ins := make([]graph.Output, len(inputs))
	for i, t := range inputs {
		ins[i] = t.out
	}
	outs := make([]graph.Output, len(outputs))
	for i, t := range outputs {
		outs[i] = t.out
	}
	ups := make([]*graph.Update, len(updates))
	for i, t := range updates {
		if t.assignment == nil {
			Panicf("Function %q: update #%d (%s) carries no assignment", name, i, t.name)
		}
		ups[i] = t.assignment
	}
	return &Function{name: name, fn: k.graph.Compile(ins, outs, ups)}
}

// Name returns the function name.
func (f *Function) Name() string { return f.name }

// Call runs the function with one concrete tensor per input.
func (f *Function) Call(inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	outputs, err := f.fn.Call(inputs...)
	if err != nil {
		return nil, errors.WithMessagef(err, "function %q", f.name)
	}
	return outputs, nil
}
