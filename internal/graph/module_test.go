package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/gonnx-ml/gonnx/internal/onnx"
)

func newDense(shape tensor.Shape, data []float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

func TestModuleForward(t *testing.T) {
	sym, params, err := FromModel(linearGraph(), 9)
	require.NoError(t, err)

	mod, err := NewModule(sym, []Binding{{Name: "input_0", Shape: tensor.Shape{1, 3}}}, params)
	require.NoError(t, err)
	defer mod.Close()

	outs, err := mod.Forward([]*tensor.Dense{newDense(tensor.Shape{1, 3}, []float32{1, 1, 1})})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, tensor.Shape{1, 2}, outs[0].Shape())
	assert.InDeltaSlice(t, []float32{9, 12}, outs[0].Data().([]float32), 1e-5)
}

func TestModuleForwardTwiceSameResult(t *testing.T) {
	sym, params, err := FromModel(linearGraph(), 9)
	require.NoError(t, err)

	mod, err := NewModule(sym, []Binding{{Name: "input_0", Shape: tensor.Shape{1, 3}}}, params)
	require.NoError(t, err)
	defer mod.Close()

	in := newDense(tensor.Shape{1, 3}, []float32{1, 2, 3})
	first, err := mod.Forward([]*tensor.Dense{in})
	require.NoError(t, err)
	second, err := mod.Forward([]*tensor.Dense{in})
	require.NoError(t, err)
	assert.Equal(t, first[0].Data(), second[0].Data())
}

func TestModuleRebindsOnShapeChange(t *testing.T) {
	sym, params, err := FromModel(linearGraph(), 9)
	require.NoError(t, err)

	mod, err := NewModule(sym, []Binding{{Name: "input_0", Shape: tensor.Shape{1, 3}}}, params)
	require.NoError(t, err)
	defer mod.Close()

	outs, err := mod.Forward([]*tensor.Dense{newDense(tensor.Shape{2, 3}, []float32{1, 1, 1, 0, 0, 1})})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, outs[0].Shape())
	assert.InDeltaSlice(t, []float32{9, 12, 5, 6}, outs[0].Data().([]float32), 1e-5)
}

func TestModuleBindingCountMismatch(t *testing.T) {
	sym, _, err := FromModel(linearGraph(), 9)
	require.NoError(t, err)
	_, err = NewModule(sym, nil, nil)
	require.Error(t, err)
}

func TestModuleSetParams(t *testing.T) {
	sym, params, err := FromModel(linearGraph(), 9)
	require.NoError(t, err)

	mod, err := NewModule(sym, []Binding{{Name: "input_0", Shape: tensor.Shape{1, 3}}}, params)
	require.NoError(t, err)
	defer mod.Close()

	doubled := Params{"W": newDense(tensor.Shape{3, 2}, []float32{2, 4, 6, 8, 10, 12})}
	require.NoError(t, mod.SetParams(doubled))

	outs, err := mod.Forward([]*tensor.Dense{newDense(tensor.Shape{1, 3}, []float32{1, 1, 1})})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{18, 24}, outs[0].Data().([]float32), 1e-5)
}

func TestModuleKeepsScalarConstantsDistinct(t *testing.T) {
	// two LeakyRelu nodes with different alphas in one graph: if their
	// scalar constants collided, the second would reuse the first's alpha
	g := &onnx.GraphProto{
		Name:   "leaky2",
		Inputs: []onnx.ValueInfoProto{vi("X", 1)},
		Nodes: []onnx.NodeProto{
			{
				OpType: "LeakyRelu", Name: "l1", Inputs: []string{"X"}, Outputs: []string{"t"},
				Attributes: []onnx.AttributeProto{{Name: "alpha", Type: onnx.AttrFloat, F: 0.5}},
			},
			{
				OpType: "LeakyRelu", Name: "l2", Inputs: []string{"t"}, Outputs: []string{"Y"},
				Attributes: []onnx.AttributeProto{{Name: "alpha", Type: onnx.AttrFloat, F: 0.25}},
			},
		},
		Outputs: []onnx.ValueInfoProto{vi("Y", 1)},
	}
	sym, params, err := FromModel(g, 9)
	require.NoError(t, err)

	mod, err := NewModule(sym, []Binding{{Name: "input_0", Shape: tensor.Shape{1}}}, params)
	require.NoError(t, err)
	defer mod.Close()

	outs, err := mod.Forward([]*tensor.Dense{newDense(tensor.Shape{1}, []float32{-8})})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{-1}, outs[0].Data().([]float32), 1e-6)
}

func TestAsFloat32(t *testing.T) {
	f64 := tensor.New(tensor.WithShape(2), tensor.WithBacking([]float64{1.5, 2.5}))
	out, err := AsFloat32(f64)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 2.5}, out.Data().([]float32))

	f32 := newDense(tensor.Shape{2}, []float32{1, 2})
	same, err := AsFloat32(f32)
	require.NoError(t, err)
	assert.Same(t, f32, same)
}

func TestWrapBatch(t *testing.T) {
	in := newDense(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out, err := WrapBatch(in)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 3}, out.Shape())
	assert.Equal(t, tensor.Shape{2, 3}, in.Shape())
}
