package ops

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/x448/float16"
	"gorgonia.org/tensor"

	"github.com/gonnx-ml/gonnx/internal/onnx"
)

// TensorFromProto converts a serialized tensor into a dense Gorgonia tensor.
// Data may live either in the typed repeated fields or in raw_data; raw
// bytes are little-endian per the serialization rules.
func TensorFromProto(tp *onnx.TensorProto) (*tensor.Dense, error) {
	shape := make(tensor.Shape, len(tp.Dims))
	elems := 1
	for i, d := range tp.Dims {
		shape[i] = int(d)
		elems *= int(d)
	}
	if len(shape) == 0 {
		shape = tensor.Shape{1}
	}

	backing, err := tensorBacking(tp, elems)
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %q", tp.Name)
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing)), nil
}

func tensorBacking(tp *onnx.TensorProto, elems int) (interface{}, error) {
	switch tp.DataType {
	case onnx.TensorFloat:
		if len(tp.RawData) > 0 {
			return rawFloat32s(tp.RawData, elems)
		}
		out := make([]float32, len(tp.FloatData))
		copy(out, tp.FloatData)
		return out, nil

	case onnx.TensorDouble:
		if len(tp.RawData) > 0 {
			if len(tp.RawData) != elems*8 {
				return nil, errors.Errorf("raw data holds %d bytes, want %d", len(tp.RawData), elems*8)
			}
			out := make([]float64, elems)
			for i := range out {
				out[i] = math.Float64frombits(binary.LittleEndian.Uint64(tp.RawData[i*8:]))
			}
			return out, nil
		}
		out := make([]float64, len(tp.DoubleData))
		copy(out, tp.DoubleData)
		return out, nil

	case onnx.TensorFloat16:
		if len(tp.RawData) > 0 {
			if len(tp.RawData) != elems*2 {
				return nil, errors.Errorf("raw data holds %d bytes, want %d", len(tp.RawData), elems*2)
			}
			out := make([]float32, elems)
			for i := range out {
				out[i] = float16.Frombits(binary.LittleEndian.Uint16(tp.RawData[i*2:])).Float32()
			}
			return out, nil
		}
		// Half floats ride in the int32_data field, one value per entry.
		out := make([]float32, len(tp.Int32Data))
		for i, v := range tp.Int32Data {
			out[i] = float16.Frombits(uint16(v)).Float32()
		}
		return out, nil

	case onnx.TensorInt32:
		if len(tp.RawData) > 0 {
			if len(tp.RawData) != elems*4 {
				return nil, errors.Errorf("raw data holds %d bytes, want %d", len(tp.RawData), elems*4)
			}
			out := make([]int32, elems)
			for i := range out {
				out[i] = int32(binary.LittleEndian.Uint32(tp.RawData[i*4:]))
			}
			return out, nil
		}
		out := make([]int32, len(tp.Int32Data))
		copy(out, tp.Int32Data)
		return out, nil

	case onnx.TensorInt64:
		if len(tp.RawData) > 0 {
			if len(tp.RawData) != elems*8 {
				return nil, errors.Errorf("raw data holds %d bytes, want %d", len(tp.RawData), elems*8)
			}
			out := make([]int64, elems)
			for i := range out {
				out[i] = int64(binary.LittleEndian.Uint64(tp.RawData[i*8:]))
			}
			return out, nil
		}
		out := make([]int64, len(tp.Int64Data))
		copy(out, tp.Int64Data)
		return out, nil

	default:
		return nil, errors.Errorf("data type %d is not supported", tp.DataType)
	}
}

func rawFloat32s(raw []byte, elems int) ([]float32, error) {
	if len(raw) != elems*4 {
		return nil, errors.Errorf("raw data holds %d bytes, want %d", len(raw), elems*4)
	}
	out := make([]float32, elems)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}
