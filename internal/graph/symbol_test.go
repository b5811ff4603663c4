package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonnx-ml/gonnx/internal/onnx"
)

func vi(name string, dims ...int64) onnx.ValueInfoProto {
	shape := &onnx.TensorShapeProto{}
	for _, d := range dims {
		shape.Dims = append(shape.Dims, onnx.DimensionProto{DimValue: d})
	}
	return onnx.ValueInfoProto{
		Name: name,
		Type: &onnx.TypeProto{TensorType: &onnx.TensorTypeProto{ElemType: onnx.TensorFloat, Shape: shape}},
	}
}

func initializer(name string, dims []int64, data []float32) onnx.TensorProto {
	return onnx.TensorProto{Name: name, DataType: onnx.TensorFloat, Dims: dims, FloatData: data}
}

func linearGraph() *onnx.GraphProto {
	return &onnx.GraphProto{
		Name:   "linear",
		Inputs: []onnx.ValueInfoProto{vi("X", 1, 3), vi("W", 3, 2)},
		Initializers: []onnx.TensorProto{
			initializer("W", []int64{3, 2}, []float32{1, 2, 3, 4, 5, 6}),
		},
		Nodes: []onnx.NodeProto{
			{OpType: "MatMul", Name: "mm", Inputs: []string{"X", "W"}, Outputs: []string{"Y"}},
		},
		Outputs: []onnx.ValueInfoProto{vi("Y", 1, 2)},
	}
}

func TestFromModelRenamesDataInputs(t *testing.T) {
	sym, params, err := FromModel(linearGraph(), 9)
	require.NoError(t, err)

	assert.Equal(t, []string{"input_0"}, sym.Inputs)
	assert.Equal(t, []string{"Y"}, sym.Outputs)
	require.Len(t, sym.Nodes, 1)
	assert.Equal(t, []string{"input_0", "W"}, sym.Nodes[0].Inputs)

	require.Contains(t, params, "W")
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, params["W"].Data().([]float32))

	shape, ok := sym.DeclaredShape("input_0")
	require.True(t, ok)
	assert.Equal(t, []int{1, 3}, []int(shape))
}

func TestFromModelSortsNodes(t *testing.T) {
	g := &onnx.GraphProto{
		Name:   "ooo",
		Inputs: []onnx.ValueInfoProto{vi("X", 2)},
		Nodes: []onnx.NodeProto{
			// b depends on a but is listed first
			{OpType: "Relu", Name: "b", Inputs: []string{"t"}, Outputs: []string{"Y"}},
			{OpType: "Neg", Name: "a", Inputs: []string{"X"}, Outputs: []string{"t"}},
		},
		Outputs: []onnx.ValueInfoProto{vi("Y", 2)},
	}
	sym, _, err := FromModel(g, 9)
	require.NoError(t, err)
	require.Len(t, sym.Nodes, 2)
	assert.Equal(t, "a", sym.Nodes[0].Name)
	assert.Equal(t, "b", sym.Nodes[1].Name)
}

func TestFromModelRejectsCycle(t *testing.T) {
	g := &onnx.GraphProto{
		Name:   "cycle",
		Inputs: []onnx.ValueInfoProto{vi("X", 2)},
		Nodes: []onnx.NodeProto{
			{OpType: "Add", Name: "a", Inputs: []string{"X", "v"}, Outputs: []string{"u"}},
			{OpType: "Relu", Name: "b", Inputs: []string{"u"}, Outputs: []string{"v"}},
		},
		Outputs: []onnx.ValueInfoProto{vi("v", 2)},
	}
	_, _, err := FromModel(g, 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestFromModelNoOutputs(t *testing.T) {
	g := &onnx.GraphProto{Name: "empty", Inputs: []onnx.ValueInfoProto{vi("X", 1)}}
	_, _, err := FromModel(g, 9)
	require.Error(t, err)
}

func TestFromNode(t *testing.T) {
	node := &onnx.NodeProto{
		OpType:  "Add",
		Inputs:  []string{"a", "b"},
		Outputs: []string{"sum"},
	}
	sym, err := FromNode(node, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sym.Inputs)
	assert.Equal(t, []string{"sum"}, sym.Outputs)
	assert.Equal(t, int64(7), sym.Opset)
}

func TestFromNodeSkipsOmittedInputs(t *testing.T) {
	node := &onnx.NodeProto{
		OpType:  "Gemm",
		Inputs:  []string{"a", "b", ""},
		Outputs: []string{"y"},
	}
	sym, err := FromNode(node, 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sym.Inputs)
}
