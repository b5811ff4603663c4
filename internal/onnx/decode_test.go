package onnx

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// wb builds protobuf wire-format bytes for test fixtures.
type wb struct {
	buf []byte
}

func (b *wb) uvarint(v uint64) {
	b.buf = binary.AppendUvarint(b.buf, v)
}

func (b *wb) tag(field, wire int) {
	b.uvarint(uint64(field<<3 | wire))
}

func (b *wb) varintField(field int, v int64) {
	b.tag(field, wireVarint)
	b.uvarint(uint64(v))
}

func (b *wb) bytesField(field int, p []byte) {
	b.tag(field, wireBytes)
	b.uvarint(uint64(len(p)))
	b.buf = append(b.buf, p...)
}

func (b *wb) strField(field int, s string) {
	b.bytesField(field, []byte(s))
}

func (b *wb) float32Field(field int, v float32) {
	b.tag(field, wire32Bit)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, math.Float32bits(v))
}

func (b *wb) msgField(field int, sub *wb) {
	b.bytesField(field, sub.buf)
}

func (b *wb) packedInts(field int, vals ...int64) {
	sub := &wb{}
	for _, v := range vals {
		sub.uvarint(uint64(v))
	}
	b.bytesField(field, sub.buf)
}

// tensorValueInfo builds a ValueInfoProto for a float32 tensor.
func tensorValueInfo(name string, elem int32, dims ...int64) *wb {
	shape := &wb{}
	for _, d := range dims {
		dim := &wb{}
		dim.varintField(1, d)
		shape.msgField(1, dim)
	}
	tt := &wb{}
	tt.varintField(1, int64(elem))
	tt.msgField(2, shape)
	typ := &wb{}
	typ.msgField(1, tt)
	vi := &wb{}
	vi.strField(1, name)
	vi.msgField(2, typ)
	return vi
}

func opNode(opType string, inputs, outputs []string, attrs ...*wb) *wb {
	n := &wb{}
	for _, in := range inputs {
		n.strField(1, in)
	}
	for _, out := range outputs {
		n.strField(2, out)
	}
	n.strField(3, opType+"_node")
	n.strField(4, opType)
	for _, a := range attrs {
		n.msgField(5, a)
	}
	return n
}

func float32Initializer(name string, data []float32, dims ...int64) *wb {
	t := &wb{}
	t.packedInts(1, dims...)
	t.varintField(2, int64(TensorFloat))
	raw := make([]byte, 0, 4*len(data))
	for _, v := range data {
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(v))
	}
	t.strField(8, name)
	t.bytesField(9, raw)
	return t
}

// buildAddModel builds the serialized model for Z = X + Y with X, Y of
// shape (1, 3).
func buildAddModel() []byte {
	graph := &wb{}
	graph.msgField(1, opNode("Add", []string{"X", "Y"}, []string{"Z"}))
	graph.strField(2, "add_graph")
	graph.msgField(11, tensorValueInfo("X", TensorFloat, 1, 3))
	graph.msgField(11, tensorValueInfo("Y", TensorFloat, 1, 3))
	graph.msgField(12, tensorValueInfo("Z", TensorFloat, 1, 3))

	opset := &wb{}
	opset.strField(1, "")
	opset.varintField(2, 9)

	model := &wb{}
	model.varintField(1, 7)
	model.strField(2, "gonnx-test")
	model.msgField(7, graph)
	model.msgField(8, opset)
	return model.buf
}

// buildMatMulModel builds Y = MatMul(X, W) with W as a 3x2 initializer.
func buildMatMulModel() []byte {
	graph := &wb{}
	graph.msgField(1, opNode("MatMul", []string{"X", "W"}, []string{"Y"}))
	graph.strField(2, "matmul_graph")
	graph.msgField(5, float32Initializer("W", []float32{1, 2, 3, 4, 5, 6}, 3, 2))
	graph.msgField(11, tensorValueInfo("X", TensorFloat, 2, 3))
	graph.msgField(11, tensorValueInfo("W", TensorFloat, 3, 2))
	graph.msgField(12, tensorValueInfo("Y", TensorFloat, 2, 2))

	opset := &wb{}
	opset.varintField(2, 9)

	model := &wb{}
	model.varintField(1, 7)
	model.msgField(7, graph)
	model.msgField(8, opset)
	return model.buf
}

func TestParseAddModel(t *testing.T) {
	model, err := Parse(buildAddModel())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if model.IRVersion != 7 {
		t.Errorf("IRVersion = %d, want 7", model.IRVersion)
	}
	if model.ProducerName != "gonnx-test" {
		t.Errorf("ProducerName = %q", model.ProducerName)
	}
	if model.OpsetVersion() != 9 {
		t.Errorf("OpsetVersion = %d, want 9", model.OpsetVersion())
	}
	if model.Graph == nil {
		t.Fatal("Graph is nil")
	}
	if len(model.Graph.Nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(model.Graph.Nodes))
	}

	node := model.Graph.Nodes[0]
	if node.OpType != "Add" {
		t.Errorf("OpType = %q, want Add", node.OpType)
	}
	if len(node.Inputs) != 2 || node.Inputs[0] != "X" || node.Inputs[1] != "Y" {
		t.Errorf("Inputs = %v", node.Inputs)
	}
	if len(node.Outputs) != 1 || node.Outputs[0] != "Z" {
		t.Errorf("Outputs = %v", node.Outputs)
	}
}

func TestParseValueInfo(t *testing.T) {
	model, err := Parse(buildAddModel())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(model.Graph.Inputs) != 2 {
		t.Fatalf("got %d inputs, want 2", len(model.Graph.Inputs))
	}
	in := model.Graph.Inputs[0]
	if in.Name != "X" {
		t.Errorf("input name = %q, want X", in.Name)
	}
	if in.Type == nil || in.Type.TensorType == nil || in.Type.TensorType.Shape == nil {
		t.Fatal("input type info incomplete")
	}
	if in.Type.TensorType.ElemType != TensorFloat {
		t.Errorf("elem type = %d, want float", in.Type.TensorType.ElemType)
	}
	dims := in.Type.TensorType.Shape.Dims
	if len(dims) != 2 || dims[0].DimValue != 1 || dims[1].DimValue != 3 {
		t.Errorf("dims = %+v, want (1, 3)", dims)
	}
}

func TestParseInitializer(t *testing.T) {
	model, err := Parse(buildMatMulModel())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(model.Graph.Initializers) != 1 {
		t.Fatalf("got %d initializers, want 1", len(model.Graph.Initializers))
	}
	w := model.Graph.Initializers[0]
	if w.Name != "W" {
		t.Errorf("name = %q, want W", w.Name)
	}
	if w.DataType != TensorFloat {
		t.Errorf("data type = %d, want float", w.DataType)
	}
	if len(w.Dims) != 2 || w.Dims[0] != 3 || w.Dims[1] != 2 {
		t.Errorf("dims = %v, want [3 2]", w.Dims)
	}
	if len(w.RawData) != 6*4 {
		t.Errorf("raw data = %d bytes, want 24", len(w.RawData))
	}
}

func TestParseAttributes(t *testing.T) {
	// Conv node with kernel_shape ints, an alpha float and a mode string.
	kernel := &wb{}
	kernel.strField(1, "kernel_shape")
	kernel.varintField(20, int64(AttrInts))
	kernel.packedInts(8, 3, 3)

	alpha := &wb{}
	alpha.strField(1, "alpha")
	alpha.varintField(20, int64(AttrFloat))
	alpha.float32Field(2, 0.5)

	mode := &wb{}
	mode.strField(1, "mode")
	mode.varintField(20, int64(AttrString))
	mode.strField(4, "constant")

	graph := &wb{}
	graph.msgField(1, opNode("Conv", []string{"X", "W"}, []string{"Y"}, kernel, alpha, mode))

	model := &wb{}
	model.varintField(1, 7)
	model.msgField(7, graph)

	parsed, err := Parse(model.buf)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	node := &parsed.Graph.Nodes[0]
	if got := node.AttrInts("kernel_shape"); len(got) != 2 || got[0] != 3 || got[1] != 3 {
		t.Errorf("kernel_shape = %v, want [3 3]", got)
	}
	if got := node.AttrFloat("alpha", 0); got != 0.5 {
		t.Errorf("alpha = %v, want 0.5", got)
	}
	if got := node.AttrString("mode", ""); got != "constant" {
		t.Errorf("mode = %q, want constant", got)
	}
	if got := node.AttrInt("missing", 42); got != 42 {
		t.Errorf("missing attr default = %d, want 42", got)
	}
}

func TestParseTensorAttribute(t *testing.T) {
	// Constant node carrying its value as a tensor attribute.
	value := &wb{}
	value.strField(1, "value")
	value.varintField(20, int64(AttrTensor))
	value.msgField(5, float32Initializer("", []float32{1, 2, 3}, 3))

	graph := &wb{}
	graph.msgField(1, opNode("Constant", nil, []string{"C"}, value))

	model := &wb{}
	model.msgField(7, graph)

	parsed, err := Parse(model.buf)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tp := parsed.Graph.Nodes[0].AttrTensor("value")
	if tp == nil {
		t.Fatal("value tensor attribute not found")
	}
	if len(tp.Dims) != 1 || tp.Dims[0] != 3 {
		t.Errorf("dims = %v, want [3]", tp.Dims)
	}
	if len(tp.RawData) != 12 {
		t.Errorf("raw data = %d bytes, want 12", len(tp.RawData))
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.onnx")
	if err := os.WriteFile(path, buildAddModel(), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	model, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if model.Graph == nil || len(model.Graph.Nodes) != 1 {
		t.Errorf("unexpected graph: %+v", model.Graph)
	}
}

func TestParseFileMissing(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "nope.onnx")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseTruncated(t *testing.T) {
	data := buildAddModel()
	if _, err := Parse(data[:len(data)-3]); err == nil {
		t.Error("expected error for truncated model")
	}
}

func TestInfo(t *testing.T) {
	model, err := Parse(buildMatMulModel())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	info := Info(model)
	if info.OpsetVersion != 9 {
		t.Errorf("OpsetVersion = %d, want 9", info.OpsetVersion)
	}
	// W is a graph input and an initializer; only X is fed at run time.
	if len(info.InputNames) != 1 || info.InputNames[0] != "X" {
		t.Errorf("InputNames = %v, want [X]", info.InputNames)
	}
	if len(info.OutputNames) != 1 || info.OutputNames[0] != "Y" {
		t.Errorf("OutputNames = %v, want [Y]", info.OutputNames)
	}
	if info.NodeCount != 1 || info.ParamCount != 1 {
		t.Errorf("NodeCount = %d, ParamCount = %d", info.NodeCount, info.ParamCount)
	}
	if info.ParamBytes != 24 {
		t.Errorf("ParamBytes = %d, want 24", info.ParamBytes)
	}
	if len(info.Operators) != 1 || info.Operators[0] != "MatMul" {
		t.Errorf("Operators = %v, want [MatMul]", info.Operators)
	}
}
