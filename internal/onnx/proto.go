package onnx

// In-memory mirrors of the ONNX protobuf messages (onnx.proto3). Field
// order follows the schema; only fields consumed by the backend are kept.

// ModelProto is a parsed ONNX model file.
type ModelProto struct {
	IRVersion       int64
	OpsetImport     []OperatorSetID
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	DocString       string
	Graph           *GraphProto
	MetadataProps   []StringStringEntry
}

// GraphProto is a computation graph: nodes plus the tensors flowing
// between them.
type GraphProto struct {
	Name         string
	Nodes        []NodeProto
	Inputs       []ValueInfoProto
	Outputs      []ValueInfoProto
	ValueInfo    []ValueInfoProto // intermediate value annotations
	Initializers []TensorProto    // learned parameters
	DocString    string
}

// NodeProto is a single operator instance.
type NodeProto struct {
	Name       string
	OpType     string
	Inputs     []string
	Outputs    []string
	Attributes []AttributeProto
	Domain     string
	DocString  string
}

// TensorProto carries tensor data, either packed into RawData or in one of
// the legacy typed fields (mutually exclusive).
type TensorProto struct {
	Name       string
	DataType   int32
	Dims       []int64
	RawData    []byte
	FloatData  []float32
	DoubleData []float64
	Int32Data  []int32
	Int64Data  []int64
	Uint64Data []uint64
	DocString  string
}

// ValueInfoProto names and types a graph input, output or intermediate.
type ValueInfoProto struct {
	Name      string
	Type      *TypeProto
	DocString string
}

// TypeProto describes a value's type. Only the tensor variant is modeled.
type TypeProto struct {
	TensorType *TensorTypeProto
}

// TensorTypeProto is an element type plus a (possibly symbolic) shape.
type TensorTypeProto struct {
	ElemType int32
	Shape    *TensorShapeProto
}

// TensorShapeProto is an ordered list of dimensions.
type TensorShapeProto struct {
	Dims []DimensionProto
}

// DimensionProto is one dimension: a concrete size or a symbolic name.
type DimensionProto struct {
	DimValue int64
	DimParam string
}

// AttributeProto is a named operator attribute. Which value field is
// meaningful is determined by Type.
type AttributeProto struct {
	Name      string
	Type      int32
	F         float32
	I         int64
	S         []byte
	T         *TensorProto
	Floats    []float32
	Ints      []int64
	Strings   [][]byte
	Tensors   []TensorProto
	DocString string
}

// OperatorSetID pins an operator-set domain to a version.
type OperatorSetID struct {
	Domain  string
	Version int64
}

// StringStringEntry is one key/value metadata pair.
type StringStringEntry struct {
	Key   string
	Value string
}

// TensorProto.DataType values.
const (
	TensorUndefined  int32 = 0
	TensorFloat      int32 = 1 // float32
	TensorUint8      int32 = 2
	TensorInt8       int32 = 3
	TensorUint16     int32 = 4
	TensorInt16      int32 = 5
	TensorInt32      int32 = 6
	TensorInt64      int32 = 7
	TensorString     int32 = 8
	TensorBool       int32 = 9
	TensorFloat16    int32 = 10
	TensorDouble     int32 = 11 // float64
	TensorUint32     int32 = 12
	TensorUint64     int32 = 13
	TensorComplex64  int32 = 14
	TensorComplex128 int32 = 15
	TensorBfloat16   int32 = 16
)

// AttributeProto.Type values.
const (
	AttrUndefined int32 = 0
	AttrFloat     int32 = 1
	AttrInt       int32 = 2
	AttrString    int32 = 3
	AttrTensor    int32 = 4
	AttrGraph     int32 = 5
	AttrFloats    int32 = 6
	AttrInts      int32 = 7
	AttrStrings   int32 = 8
	AttrTensors   int32 = 9
	AttrGraphs    int32 = 10
)

// Attr returns the attribute with the given name, or nil.
func (n *NodeProto) Attr(name string) *AttributeProto {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			return &n.Attributes[i]
		}
	}
	return nil
}

// AttrInt returns an integer attribute, or def when absent.
func (n *NodeProto) AttrInt(name string, def int64) int64 {
	if a := n.Attr(name); a != nil {
		return a.I
	}
	return def
}

// AttrInts returns an integer-list attribute, or nil when absent.
func (n *NodeProto) AttrInts(name string) []int64 {
	if a := n.Attr(name); a != nil {
		return a.Ints
	}
	return nil
}

// AttrFloat returns a float attribute, or def when absent.
func (n *NodeProto) AttrFloat(name string, def float32) float32 {
	if a := n.Attr(name); a != nil {
		return a.F
	}
	return def
}

// AttrString returns a string attribute, or def when absent.
func (n *NodeProto) AttrString(name, def string) string {
	if a := n.Attr(name); a != nil && len(a.S) > 0 {
		return string(a.S)
	}
	return def
}

// AttrTensor returns a tensor attribute, or nil when absent.
func (n *NodeProto) AttrTensor(name string) *TensorProto {
	if a := n.Attr(name); a != nil {
		return a.T
	}
	return nil
}

// OpsetVersion returns the version of the default operator set, or 0 when
// the model does not declare one.
func (m *ModelProto) OpsetVersion() int64 {
	for _, opset := range m.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			return opset.Version
		}
	}
	return 0
}
