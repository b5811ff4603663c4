package ops

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gonnx-ml/gonnx/internal/onnx"
)

func (r *Registry) registerShapeOps() {
	r.Register("Reshape", buildReshape)
	r.Register("Flatten", buildFlatten)
	r.Register("Transpose", buildTranspose)
	r.Register("Concat", buildConcat)
	r.Register("Squeeze", buildSqueeze)
	r.Register("Unsqueeze", buildUnsqueeze)
	r.Register("Slice", buildSlice)
	r.Register("Pad", buildPad)
}

// buildReshape accepts the shape either as an attribute (opset 1..4) or as a
// second input (opset 5+). The input form requires a constant node since the
// target shape must be known when the graph is assembled.
func buildReshape(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 2); err != nil {
		return nil, err
	}
	x := inputs[0]

	var target []int64
	if len(inputs) == 2 {
		var err error
		if target, err = int64sOf(inputs[1]); err != nil {
			return nil, errors.Wrap(err, "Reshape: shape input")
		}
	} else {
		target = node.AttrInts("shape")
	}
	if len(target) == 0 {
		return nil, errors.Errorf("Reshape: no target shape")
	}

	dims, err := resolveShape(target, x.Shape())
	if err != nil {
		return nil, err
	}
	return single(gorgonia.Reshape(x, dims))
}

// resolveShape expands the 0 (copy dim) and -1 (infer) markers.
func resolveShape(target []int64, in tensor.Shape) (tensor.Shape, error) {
	total := in.TotalSize()
	dims := make(tensor.Shape, len(target))
	infer := -1
	known := 1
	for i, d := range target {
		switch {
		case d == -1:
			if infer >= 0 {
				return nil, errors.Errorf("Reshape: more than one -1 in %v", target)
			}
			infer = i
		case d == 0:
			if i >= len(in) {
				return nil, errors.Errorf("Reshape: dim %d copies beyond input rank %d", i, len(in))
			}
			dims[i] = in[i]
			known *= dims[i]
		default:
			dims[i] = int(d)
			known *= dims[i]
		}
	}
	if infer >= 0 {
		if known == 0 || total%known != 0 {
			return nil, errors.Errorf("Reshape: cannot infer dim for %v from %v", target, in)
		}
		dims[infer] = total / known
	}
	return dims, nil
}

func buildFlatten(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	x := inputs[0]
	shape := x.Shape()
	rank := len(shape)

	raw := node.AttrInt("axis", 1)
	axis := int(raw)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis > rank {
		return nil, errors.Errorf("Flatten: axis %d out of range for rank %d", raw, rank)
	}

	rows, cols := 1, 1
	for i := 0; i < axis; i++ {
		rows *= shape[i]
	}
	for i := axis; i < rank; i++ {
		cols *= shape[i]
	}
	return single(gorgonia.Reshape(x, tensor.Shape{rows, cols}))
}

func buildTranspose(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	x := inputs[0]
	rank := len(x.Shape())

	perm := node.AttrInts("perm")
	axes := make([]int, rank)
	if len(perm) == 0 {
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	} else {
		if len(perm) != rank {
			return nil, errors.Errorf("Transpose: perm %v does not match rank %d", perm, rank)
		}
		for i, p := range perm {
			a, err := normalizeAxis(node.OpType, p, rank)
			if err != nil {
				return nil, err
			}
			axes[i] = a
		}
	}
	return single(gorgonia.Transpose(x, axes...))
}

func buildConcat(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, -1); err != nil {
		return nil, err
	}
	if len(inputs) == 1 {
		return []*gorgonia.Node{inputs[0]}, nil
	}
	axis, err := normalizeAxis(node.OpType, node.AttrInt("axis", 1), len(inputs[0].Shape()))
	if err != nil {
		return nil, err
	}
	return single(gorgonia.Concat(axis, inputs...))
}

func buildSqueeze(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	x := inputs[0]
	shape := x.Shape()
	rank := len(shape)

	drop := make(map[int]bool)
	if axes := node.AttrInts("axes"); len(axes) > 0 {
		for _, ax := range axes {
			a, err := normalizeAxis(node.OpType, ax, rank)
			if err != nil {
				return nil, err
			}
			if shape[a] != 1 {
				return nil, errors.Errorf("Squeeze: axis %d has size %d", a, shape[a])
			}
			drop[a] = true
		}
	} else {
		for i, d := range shape {
			if d == 1 {
				drop[i] = true
			}
		}
	}

	out := make(tensor.Shape, 0, rank)
	for i, d := range shape {
		if !drop[i] {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = tensor.Shape{1}
	}
	return single(gorgonia.Reshape(x, out))
}

func buildUnsqueeze(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	x := inputs[0]
	shape := x.Shape()
	axes := node.AttrInts("axes")
	if len(axes) == 0 {
		return nil, errors.Errorf("Unsqueeze: axes attribute is required")
	}

	outRank := len(shape) + len(axes)
	insert := make(map[int]bool)
	for _, ax := range axes {
		a, err := normalizeAxis(node.OpType, ax, outRank)
		if err != nil {
			return nil, err
		}
		if insert[a] {
			return nil, errors.Errorf("Unsqueeze: duplicate axis %d", a)
		}
		insert[a] = true
	}

	out := make(tensor.Shape, 0, outRank)
	src := 0
	for i := 0; i < outRank; i++ {
		if insert[i] {
			out = append(out, 1)
		} else {
			out = append(out, shape[src])
			src++
		}
	}
	return single(gorgonia.Reshape(x, out))
}
