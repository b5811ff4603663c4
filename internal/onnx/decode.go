package onnx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ParseFile reads and parses an ONNX model file.
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a serialized ModelProto.
func Parse(data []byte) (*ModelProto, error) {
	model, err := decodeModel(data)
	if err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return model, nil
}

// Protobuf wire types.
const (
	wireVarint = 0
	wire64Bit  = 1
	wireBytes  = 2
	wire32Bit  = 5
)

// reader is a cursor over one serialized message.
type reader struct {
	buf []byte
	off int
}

func (r *reader) done() bool { return r.off >= len(r.buf) }

// next reads a field tag.
func (r *reader) next() (field, wire int, err error) {
	tag, err := r.varint()
	if err != nil {
		return 0, 0, err
	}
	return int(tag >> 3), int(tag & 0x7), nil
}

func (r *reader) varint() (int64, error) {
	var v uint64
	var shift uint
	for {
		if r.done() {
			return 0, io.ErrUnexpectedEOF
		}
		b := r.buf[r.off]
		r.off++
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return int64(v), nil
		}
		shift += 7
		if shift >= 64 {
			return 0, errors.New("varint overflow")
		}
	}
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.varint()
	if err != nil {
		return nil, err
	}
	if n < 0 || r.off+int(n) > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

func (r *reader) str() (string, error) {
	b, err := r.bytes()
	return string(b), err
}

func (r *reader) float32() (float32, error) {
	if r.off+4 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	bits := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return math.Float32frombits(bits), nil
}

// skip discards a field of the given wire type.
func (r *reader) skip(wire int) error {
	switch wire {
	case wireVarint:
		_, err := r.varint()
		return err
	case wire64Bit:
		if r.off+8 > len(r.buf) {
			return io.ErrUnexpectedEOF
		}
		r.off += 8
		return nil
	case wireBytes:
		_, err := r.bytes()
		return err
	case wire32Bit:
		if r.off+4 > len(r.buf) {
			return io.ErrUnexpectedEOF
		}
		r.off += 4
		return nil
	default:
		return fmt.Errorf("unknown wire type %d", wire)
	}
}

// packedInt64s decodes a packed repeated varint field. Repeated varints may
// also arrive unpacked; callers handle that case at the field switch.
func packedInt64s(data []byte, dst []int64) ([]int64, error) {
	r := &reader{buf: data}
	for !r.done() {
		v, err := r.varint()
		if err != nil {
			return nil, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}

// packedFloat32s decodes a packed repeated fixed32 float field.
func packedFloat32s(data []byte, dst []float32) []float32 {
	for i := 0; i+4 <= len(data); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
	}
	return dst
}

// packedFloat64s decodes a packed repeated fixed64 double field.
func packedFloat64s(data []byte, dst []float64) []float64 {
	for i := 0; i+8 <= len(data); i += 8 {
		dst = append(dst, math.Float64frombits(binary.LittleEndian.Uint64(data[i:])))
	}
	return dst
}

func decodeModel(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1: // ir_version
			m.IRVersion, err = r.varint()
		case 2: // producer_name
			m.ProducerName, err = r.str()
		case 3: // producer_version
			m.ProducerVersion, err = r.str()
		case 4: // domain
			m.Domain, err = r.str()
		case 5: // model_version
			m.ModelVersion, err = r.varint()
		case 6: // doc_string
			m.DocString, err = r.str()
		case 7: // graph
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				m.Graph, err = decodeGraph(sub)
			}
		case 8: // opset_import
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				var opset OperatorSetID
				if opset, err = decodeOperatorSetID(sub); err == nil {
					m.OpsetImport = append(m.OpsetImport, opset)
				}
			}
		case 14: // metadata_props
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				var entry StringStringEntry
				if entry, err = decodeStringStringEntry(sub); err == nil {
					m.MetadataProps = append(m.MetadataProps, entry)
				}
			}
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func decodeGraph(data []byte) (*GraphProto, error) {
	g := &GraphProto{}
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1: // node
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				var node NodeProto
				if node, err = decodeNode(sub); err == nil {
					g.Nodes = append(g.Nodes, node)
				}
			}
		case 2: // name
			g.Name, err = r.str()
		case 5: // initializer
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				var t TensorProto
				if t, err = decodeTensor(sub); err == nil {
					g.Initializers = append(g.Initializers, t)
				}
			}
		case 10: // doc_string
			g.DocString, err = r.str()
		case 11, 12, 13: // input, output, value_info
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				var vi ValueInfoProto
				if vi, err = decodeValueInfo(sub); err == nil {
					switch field {
					case 11:
						g.Inputs = append(g.Inputs, vi)
					case 12:
						g.Outputs = append(g.Outputs, vi)
					default:
						g.ValueInfo = append(g.ValueInfo, vi)
					}
				}
			}
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

func decodeNode(data []byte) (NodeProto, error) {
	var n NodeProto
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return n, err
		}
		switch field {
		case 1: // input
			var s string
			if s, err = r.str(); err == nil {
				n.Inputs = append(n.Inputs, s)
			}
		case 2: // output
			var s string
			if s, err = r.str(); err == nil {
				n.Outputs = append(n.Outputs, s)
			}
		case 3: // name
			n.Name, err = r.str()
		case 4: // op_type
			n.OpType, err = r.str()
		case 5: // attribute
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				var attr AttributeProto
				if attr, err = decodeAttribute(sub); err == nil {
					n.Attributes = append(n.Attributes, attr)
				}
			}
		case 6: // doc_string
			n.DocString, err = r.str()
		case 7: // domain
			n.Domain, err = r.str()
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func decodeTensor(data []byte) (TensorProto, error) {
	var t TensorProto
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return t, err
		}
		switch field {
		case 1: // dims
			if wire == wireBytes {
				var sub []byte
				if sub, err = r.bytes(); err == nil {
					t.Dims, err = packedInt64s(sub, t.Dims)
				}
			} else {
				var v int64
				if v, err = r.varint(); err == nil {
					t.Dims = append(t.Dims, v)
				}
			}
		case 2: // data_type
			var v int64
			if v, err = r.varint(); err == nil {
				t.DataType = int32(v)
			}
		case 4: // float_data
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				t.FloatData = packedFloat32s(sub, t.FloatData)
			}
		case 5: // int32_data
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				var vals []int64
				if vals, err = packedInt64s(sub, nil); err == nil {
					for _, v := range vals {
						t.Int32Data = append(t.Int32Data, int32(v))
					}
				}
			}
		case 7: // int64_data
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				t.Int64Data, err = packedInt64s(sub, t.Int64Data)
			}
		case 8: // name
			t.Name, err = r.str()
		case 9: // raw_data
			t.RawData, err = r.bytes()
		case 10: // double_data
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				t.DoubleData = packedFloat64s(sub, t.DoubleData)
			}
		case 11: // uint64_data
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				var vals []int64
				if vals, err = packedInt64s(sub, nil); err == nil {
					for _, v := range vals {
						t.Uint64Data = append(t.Uint64Data, uint64(v))
					}
				}
			}
		case 12: // doc_string
			t.DocString, err = r.str()
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return t, err
		}
	}
	return t, nil
}

func decodeValueInfo(data []byte) (ValueInfoProto, error) {
	var vi ValueInfoProto
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return vi, err
		}
		switch field {
		case 1: // name
			vi.Name, err = r.str()
		case 2: // type
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				vi.Type, err = decodeType(sub)
			}
		case 3: // doc_string
			vi.DocString, err = r.str()
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return vi, err
		}
	}
	return vi, nil
}

func decodeType(data []byte) (*TypeProto, error) {
	t := &TypeProto{}
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1: // tensor_type
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				t.TensorType, err = decodeTensorType(sub)
			}
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func decodeTensorType(data []byte) (*TensorTypeProto, error) {
	t := &TensorTypeProto{}
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1: // elem_type
			var v int64
			if v, err = r.varint(); err == nil {
				t.ElemType = int32(v)
			}
		case 2: // shape
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				t.Shape, err = decodeTensorShape(sub)
			}
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func decodeTensorShape(data []byte) (*TensorShapeProto, error) {
	s := &TensorShapeProto{}
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1: // dim
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				var dim DimensionProto
				if dim, err = decodeDimension(sub); err == nil {
					s.Dims = append(s.Dims, dim)
				}
			}
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func decodeDimension(data []byte) (DimensionProto, error) {
	var d DimensionProto
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return d, err
		}
		switch field {
		case 1: // dim_value
			d.DimValue, err = r.varint()
		case 2: // dim_param
			d.DimParam, err = r.str()
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return d, err
		}
	}
	return d, nil
}

func decodeAttribute(data []byte) (AttributeProto, error) {
	var a AttributeProto
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return a, err
		}
		switch field {
		case 1: // name
			a.Name, err = r.str()
		case 2: // f
			a.F, err = r.float32()
		case 3: // i
			a.I, err = r.varint()
		case 4: // s
			a.S, err = r.bytes()
		case 5: // t
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				var t TensorProto
				if t, err = decodeTensor(sub); err == nil {
					a.T = &t
				}
			}
		case 7: // floats
			if wire == wireBytes {
				var sub []byte
				if sub, err = r.bytes(); err == nil {
					a.Floats = packedFloat32s(sub, a.Floats)
				}
			} else {
				var v float32
				if v, err = r.float32(); err == nil {
					a.Floats = append(a.Floats, v)
				}
			}
		case 8: // ints
			if wire == wireBytes {
				var sub []byte
				if sub, err = r.bytes(); err == nil {
					a.Ints, err = packedInt64s(sub, a.Ints)
				}
			} else {
				var v int64
				if v, err = r.varint(); err == nil {
					a.Ints = append(a.Ints, v)
				}
			}
		case 9: // strings
			var b []byte
			if b, err = r.bytes(); err == nil {
				a.Strings = append(a.Strings, b)
			}
		case 10: // tensors
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				var t TensorProto
				if t, err = decodeTensor(sub); err == nil {
					a.Tensors = append(a.Tensors, t)
				}
			}
		case 13: // doc_string
			a.DocString, err = r.str()
		case 20: // type
			var v int64
			if v, err = r.varint(); err == nil {
				a.Type = int32(v)
			}
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return a, err
		}
	}
	return a, nil
}

func decodeOperatorSetID(data []byte) (OperatorSetID, error) {
	var o OperatorSetID
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return o, err
		}
		switch field {
		case 1: // domain
			o.Domain, err = r.str()
		case 2: // version
			o.Version, err = r.varint()
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return o, err
		}
	}
	return o, nil
}

func decodeStringStringEntry(data []byte) (StringStringEntry, error) {
	var e StringStringEntry
	r := &reader{buf: data}
	for !r.done() {
		field, wire, err := r.next()
		if err != nil {
			return e, err
		}
		switch field {
		case 1: // key
			e.Key, err = r.str()
		case 2: // value
			e.Value, err = r.str()
		default:
			err = r.skip(wire)
		}
		if err != nil {
			return e, err
		}
	}
	return e, nil
}
