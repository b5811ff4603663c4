package graph

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DenseOf copies a Gorgonia value into a standalone dense tensor. Scalar
// results come back with shape (1).
func DenseOf(v gorgonia.Value) (*tensor.Dense, error) {
	if v == nil {
		return nil, errors.New("value has not been computed")
	}
	switch val := v.(type) {
	case *tensor.Dense:
		return val.Clone().(*tensor.Dense), nil
	case tensor.Tensor:
		if d, ok := tensor.Materialize(val).(*tensor.Dense); ok {
			return d.Clone().(*tensor.Dense), nil
		}
		return nil, errors.Errorf("cannot copy tensor of type %T", v)
	default:
		d := tensor.New(tensor.FromScalar(v.Data()))
		if err := d.Reshape(1); err != nil {
			return nil, err
		}
		return d, nil
	}
}

// AsFloat32 coerces a dense tensor to float32 elements, copying only when
// a conversion is needed.
func AsFloat32(d *tensor.Dense) (*tensor.Dense, error) {
	if d.Dtype() == tensor.Float32 {
		return d, nil
	}
	var out []float32
	switch data := d.Data().(type) {
	case []float64:
		out = make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(v)
		}
	case []int32:
		out = make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(v)
		}
	case []int64:
		out = make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(v)
		}
	default:
		return nil, errors.Errorf("cannot coerce %v to float32", d.Dtype())
	}
	return tensor.New(tensor.WithShape(d.Shape().Clone()...), tensor.WithBacking(out)), nil
}

// WrapBatch copies d with a size-1 axis prepended to its shape.
func WrapBatch(d *tensor.Dense) (*tensor.Dense, error) {
	out := d.Clone().(*tensor.Dense)
	shape := append(tensor.Shape{1}, d.Shape()...)
	if err := out.Reshape(shape...); err != nil {
		return nil, errors.Wrap(err, "wrapping batch axis")
	}
	return out, nil
}
