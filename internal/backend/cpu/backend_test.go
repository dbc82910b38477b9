package cpu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/agents/internal/parallel"
	"github.com/born-ml/agents/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32(data []float32, shape ...int) *tensor.RawTensor {
	return must.M1(tensor.FromFloat32s(data, shape))
}

func f64(data []float64, shape ...int) *tensor.RawTensor {
	return must.M1(tensor.FromFloat64s(data, shape))
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	require.NotNil(t, backend)
	assert.Equal(t, "CPU", backend.Name())
}

func TestBinaryBroadcast(t *testing.T) {
	cpu := New()
	a := f32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	row := f32([]float32{10, 20, 30}, 3)
	col := f32([]float32{100, 200}, 2, 1)

	tests := []struct {
		name string
		got  *tensor.RawTensor
		want []float32
	}{
		{"add row", cpu.Add(a, row), []float32{11, 22, 33, 14, 25, 36}},
		{"sub col", cpu.Sub(a, col), []float32{-99, -98, -97, -196, -195, -194}},
		{"mul scalar", cpu.Mul(a, tensor.Scalar(2, tensor.Float32)), []float32{2, 4, 6, 8, 10, 12}},
		{"div row", cpu.Div(a, row), []float32{0.1, 0.1, 0.1, 0.4, 0.25, 0.2}},
		{"maximum", cpu.Maximum(a, tensor.Scalar(3.5, tensor.Float32)), []float32{3.5, 3.5, 3.5, 4, 5, 6}},
		{"minimum", cpu.Minimum(a, tensor.Scalar(3.5, tensor.Float32)), []float32{1, 2, 3, 3.5, 3.5, 3.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tensor.Shape{2, 3}, tt.got.Shape())
			assert.InDeltaSlice(t, tt.want, tt.got.AsFloat32(), 1e-6)
		})
	}
}

func TestBinaryOuterBroadcast(t *testing.T) {
	cpu := New()
	out := cpu.Add(f64([]float64{1, 2}, 2, 1), f64([]float64{10, 20, 30}, 1, 3))
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float64{11, 21, 31, 12, 22, 32}, out.AsFloat64())
}

func TestBinaryPanics(t *testing.T) {
	cpu := New()
	assert.PanicsWithValue(t, "add: dtype mismatch float32 vs float64", func() {
		cpu.Add(tensor.Scalar(1, tensor.Float32), tensor.Scalar(1, tensor.Float64))
	})
	assert.Panics(t, func() {
		cpu.Add(f32([]float32{1, 2, 3}, 3), f32([]float32{1, 2}, 2))
	})
}

func TestUnary(t *testing.T) {
	cpu := New()
	x := f64([]float64{-2, 0, 3}, 3)

	assert.Equal(t, []float64{2, 0, -3}, cpu.Neg(x).AsFloat64())
	assert.Equal(t, []float64{0, 0, 3}, cpu.ReLU(x).AsFloat64())
	assert.Equal(t, []float64{-1, 0, 1}, cpu.Sign(x).AsFloat64())
	assert.Equal(t, []float64{2, 0, 3}, cpu.Abs(x).AsFloat64())
	assert.Equal(t, []float64{4, 0, 9}, cpu.Square(x).AsFloat64())
	assert.InDeltaSlice(t, []float64{math.Exp(-2), 1, math.Exp(3)}, cpu.Exp(x).AsFloat64(), 1e-12)
	assert.InDeltaSlice(t, []float64{0.11920292, 0.5, 0.95257413}, cpu.Sigmoid(x).AsFloat64(), 1e-8)
	assert.InDeltaSlice(t, []float64{math.Log1p(math.Exp(-2)), math.Ln2, math.Log1p(math.Exp(3))},
		cpu.Softplus(x).AsFloat64(), 1e-12)
	assert.InDelta(t, 100.0, cpu.Softplus(tensor.Scalar(100, tensor.Float64)).Item(), 1e-12)
}

func TestComparisonAndWhere(t *testing.T) {
	cpu := New()
	x := f32([]float32{-1, 0, 2}, 3)
	zero := tensor.Scalar(0, tensor.Float32)

	gt := cpu.Greater(x, zero)
	assert.Equal(t, tensor.Bool, gt.DType())
	assert.Equal(t, []bool{false, false, true}, gt.AsBool())
	assert.Equal(t, []bool{false, true, true}, cpu.GreaterEqual(x, zero).AsBool())
	assert.Equal(t, []bool{true, false, false}, cpu.Less(x, zero).AsBool())
	assert.Equal(t, []bool{true, true, false}, cpu.LessEqual(x, zero).AsBool())
	assert.Equal(t, []bool{false, true, false}, cpu.Equal(x, zero).AsBool())

	where := cpu.Where(gt, x, f32([]float32{7}, 1))
	assert.Equal(t, []float32{7, 7, 2}, where.AsFloat32())

	assert.Panics(t, func() { cpu.Where(x, x, x) })
}

func TestCast(t *testing.T) {
	cpu := New()
	x := f32([]float32{-1.5, 0, 2.25}, 3)

	assert.Equal(t, []float64{-1.5, 0, 2.25}, cpu.Cast(x, tensor.Float64).AsFloat64())
	assert.Equal(t, []int32{-1, 0, 2}, cpu.Cast(x, tensor.Int32).AsInt32())
	assert.Equal(t, []bool{true, false, true}, cpu.Cast(x, tensor.Bool).AsBool())

	same := cpu.Cast(x, tensor.Float32)
	same.AsFloat32()[0] = 42
	assert.Equal(t, float32(-1.5), x.AsFloat32()[0], "cast to the same dtype must copy")
}

func TestMatMul(t *testing.T) {
	a := f32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := f32([]float32{7, 8, 9, 10, 11, 12}, 3, 2)

	for _, cfg := range []parallel.Config{parallel.Sequential(), {Enabled: true, NumWorkers: 4, MinChunkSize: 1}} {
		out := NewWithConfig(cfg).MatMul(a, b)
		assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
		assert.Equal(t, []float32{58, 64, 139, 154}, out.AsFloat32())
	}

	assert.PanicsWithValue(t, "matmul: shape mismatch [2,3] @ [2,3]", func() { New().MatMul(a, a) })
}

func TestMatMulParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := New().RandomNormal(rng, tensor.Shape{67, 13}, tensor.Float64, 0, 1)
	b := New().RandomNormal(rng, tensor.Shape{13, 5}, tensor.Float64, 0, 1)

	seq := NewWithConfig(parallel.Sequential()).MatMul(a, b)
	par := NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 3, MinChunkSize: 4}).MatMul(a, b)
	assert.InDeltaSlice(t, seq.AsFloat64(), par.AsFloat64(), 1e-12)
}

func TestTranspose(t *testing.T) {
	cpu := New()
	x := f32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	out := cpu.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.AsFloat32())

	x3 := f64([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 2, 2, 2)
	perm := []int{1, 2, 0}
	out3 := cpu.Transpose(x3, perm...)
	assert.Equal(t, tensor.Shape{2, 2, 2}, out3.Shape())
	assert.Equal(t, []float64{0, 4, 1, 5, 2, 6, 3, 7}, out3.AsFloat64())
	assert.Equal(t, []int{1, 2, 0}, perm, "axes argument must not be modified")
}

func TestBroadcastToAndSumTo(t *testing.T) {
	cpu := New()
	x := f32([]float32{1, 2, 3}, 3)

	b := cpu.BroadcastTo(x, tensor.Shape{2, 3})
	assert.Equal(t, []float32{1, 2, 3, 1, 2, 3}, b.AsFloat32())

	s := cpu.SumTo(b, tensor.Shape{3})
	assert.Equal(t, []float32{2, 4, 6}, s.AsFloat32())

	col := cpu.SumTo(b, tensor.Shape{2, 1})
	assert.Equal(t, []float32{6, 6}, col.AsFloat32())

	scalar := cpu.SumTo(b, tensor.Shape{})
	assert.InDelta(t, 12.0, scalar.Item(), 1e-6)

	assert.Panics(t, func() { cpu.BroadcastTo(b, tensor.Shape{3}) })
}

func TestReductions(t *testing.T) {
	cpu := New()
	x := f64([]float64{1, 2, 3, 4, 5, 6}, 2, 3)

	tests := []struct {
		name      string
		got       *tensor.RawTensor
		wantShape tensor.Shape
		want      []float64
	}{
		{"sum all", cpu.ReduceSum(x, nil, false), tensor.Shape{}, []float64{21}},
		{"sum rows", cpu.ReduceSum(x, []int{1}, false), tensor.Shape{2}, []float64{6, 15}},
		{"sum cols keep", cpu.ReduceSum(x, []int{0}, true), tensor.Shape{1, 3}, []float64{5, 7, 9}},
		{"mean last", cpu.ReduceMean(x, []int{-1}, true), tensor.Shape{2, 1}, []float64{2, 5}},
		{"mean all", cpu.ReduceMean(x, []int{0, 1}, false), tensor.Shape{}, []float64{3.5}},
		{"max cols", cpu.ReduceMax(x, []int{0}, false), tensor.Shape{3}, []float64{4, 5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantShape, tt.got.Shape())
			assert.InDeltaSlice(t, tt.want, tt.got.AsFloat64(), 1e-12)
		})
	}

	assert.Panics(t, func() { cpu.ReduceSum(x, []int{2}, false) })
}

func TestSoftmax(t *testing.T) {
	cpu := New()
	x := f32([]float32{1, 2, 3, 1, 1, 1}, 2, 3)

	out := cpu.Softmax(x, -1)
	got := out.AsFloat32()
	assert.InDeltaSlice(t, []float32{0.09003057, 0.24472847, 0.66524096}, got[:3], 1e-6)
	assert.InDeltaSlice(t, []float32{1.0 / 3, 1.0 / 3, 1.0 / 3}, got[3:], 1e-6)

	cols := cpu.Softmax(x, 0).AsFloat32()
	for j := 0; j < 3; j++ {
		assert.InDelta(t, 1.0, cols[j]+cols[3+j], 1e-6)
	}

	// Large logits must not overflow.
	big := cpu.Softmax(f64([]float64{1000, 1000}, 2), 0)
	assert.Equal(t, []float64{0.5, 0.5}, big.AsFloat64())
}

func TestRandom(t *testing.T) {
	cpu := New()
	shape := tensor.Shape{1000}

	u := cpu.RandomUniform(rand.New(rand.NewSource(7)), shape, tensor.Float32, -0.5, 0.5)
	for _, v := range u.AsFloat32() {
		require.GreaterOrEqual(t, v, float32(-0.5))
		require.Less(t, v, float32(0.5))
	}

	tn := cpu.TruncatedNormal(rand.New(rand.NewSource(7)), shape, tensor.Float64, 1, 0.1)
	for _, v := range tn.AsFloat64() {
		require.InDelta(t, 1.0, v, 0.2+1e-12)
	}

	// Same seed, same values.
	a := cpu.RandomNormal(rand.New(rand.NewSource(3)), shape, tensor.Float64, 0, 1)
	b := cpu.RandomNormal(rand.New(rand.NewSource(3)), shape, tensor.Float64, 0, 1)
	assert.Equal(t, a.AsFloat64(), b.AsFloat64())

	assert.Panics(t, func() { cpu.RandomNormal(rand.New(rand.NewSource(3)), shape, tensor.Int32, 0, 1) })
}
