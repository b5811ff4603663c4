package ops

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gonnx-ml/gonnx/internal/onnx"
)

func (r *Registry) registerNNOps() {
	r.Register("Conv", buildConv)
	r.Register("MaxPool", buildMaxPool)
	r.Register("GlobalAveragePool", buildGlobalAveragePool)
	r.Register("BatchNormalization", buildBatchNorm)
}

// buildConv handles 2D convolutions over NCHW inputs. Grouped convolutions
// and asymmetric padding are rejected.
func buildConv(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 2, 3); err != nil {
		return nil, err
	}
	x, w := inputs[0], inputs[1]
	if len(x.Shape()) != 4 {
		return nil, errors.Errorf("Conv: expected a 4D input, got %v", x.Shape())
	}
	if g := node.AttrInt("group", 1); g != 1 {
		return nil, errors.Errorf("Conv: group %d is not supported", g)
	}

	kernel, err := spatialPair(node, "kernel_shape", w.Shape()[2:])
	if err != nil {
		return nil, err
	}
	pad, err := convPads(node)
	if err != nil {
		return nil, err
	}
	stride, err := spatialPair(node, "strides", tensor.Shape{1, 1})
	if err != nil {
		return nil, err
	}
	dilation, err := spatialPair(node, "dilations", tensor.Shape{1, 1})
	if err != nil {
		return nil, err
	}

	out, err := gorgonia.Conv2d(x, w, tensor.Shape(kernel), pad, stride, dilation)
	if err != nil {
		return nil, err
	}

	if len(inputs) == 3 && inputs[2] != nil {
		bias, err := channelAligned(inputs[2], 4)
		if err != nil {
			return nil, errors.Wrap(err, "Conv: bias")
		}
		if out, err = addOp.apply(out, bias); err != nil {
			return nil, err
		}
	}
	return []*gorgonia.Node{out}, nil
}

func buildMaxPool(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	x := inputs[0]
	if len(x.Shape()) != 4 {
		return nil, errors.Errorf("MaxPool: expected a 4D input, got %v", x.Shape())
	}

	kernel := node.AttrInts("kernel_shape")
	if len(kernel) != 2 {
		return nil, errors.Errorf("MaxPool: kernel_shape %v must name 2 spatial dims", kernel)
	}
	pad, err := convPads(node)
	if err != nil {
		return nil, err
	}
	stride, err := spatialPair(node, "strides", tensor.Shape{1, 1})
	if err != nil {
		return nil, err
	}

	return single(gorgonia.MaxPool2D(x, tensor.Shape{int(kernel[0]), int(kernel[1])}, pad, stride))
}

func buildGlobalAveragePool(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	x := inputs[0]
	shape := x.Shape()
	if len(shape) != 4 {
		return nil, errors.Errorf("GlobalAveragePool: expected a 4D input, got %v", shape)
	}
	mean, err := gorgonia.Mean(x, 2, 3)
	if err != nil {
		return nil, err
	}
	return single(gorgonia.Reshape(mean, tensor.Shape{shape[0], shape[1], 1, 1}))
}

// buildBatchNorm applies the inference form: the running mean and variance
// arrive as inputs, nothing is recomputed from the batch.
func buildBatchNorm(b *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 5, 5); err != nil {
		return nil, err
	}
	x := inputs[0]
	rank := len(x.Shape())
	if rank < 2 {
		return nil, errors.Errorf("BatchNormalization: expected at least 2 dims, got %v", x.Shape())
	}
	eps := node.AttrFloat("epsilon", 1e-5)

	scale, err := channelAligned(inputs[1], rank)
	if err != nil {
		return nil, err
	}
	bias, err := channelAligned(inputs[2], rank)
	if err != nil {
		return nil, err
	}
	mean, err := channelAligned(inputs[3], rank)
	if err != nil {
		return nil, err
	}
	variance, err := channelAligned(inputs[4], rank)
	if err != nil {
		return nil, err
	}

	shifted, err := gorgonia.Add(variance, scalarConst(b, scalarName(node, "epsilon"), eps))
	if err != nil {
		return nil, err
	}
	std, err := gorgonia.Sqrt(shifted)
	if err != nil {
		return nil, err
	}

	out, err := subOp.apply(x, mean)
	if err != nil {
		return nil, err
	}
	if out, err = divOp.apply(out, std); err != nil {
		return nil, err
	}
	if out, err = mulOp.apply(out, scale); err != nil {
		return nil, err
	}
	if out, err = addOp.apply(out, bias); err != nil {
		return nil, err
	}
	return []*gorgonia.Node{out}, nil
}

// channelAligned reshapes a per-channel vector to (1, C, 1, ...) so that it
// broadcasts along the channel axis of an NCHW-style tensor.
func channelAligned(n *gorgonia.Node, rank int) (*gorgonia.Node, error) {
	shape := n.Shape()
	if len(shape) != 1 {
		return nil, errors.Errorf("expected a 1D per-channel tensor, got %v", shape)
	}
	aligned := make(tensor.Shape, rank)
	for i := range aligned {
		aligned[i] = 1
	}
	aligned[1] = shape[0]
	return gorgonia.Reshape(n, aligned)
}

// spatialPair reads a 2-element int attribute, falling back to def.
func spatialPair(node *onnx.NodeProto, name string, def tensor.Shape) ([]int, error) {
	raw := node.AttrInts(name)
	if len(raw) == 0 {
		return []int{def[0], def[1]}, nil
	}
	if len(raw) != 2 {
		return nil, errors.Errorf("%s: %s %v must name 2 spatial dims", node.OpType, name, raw)
	}
	return []int{int(raw[0]), int(raw[1])}, nil
}

// convPads collapses the 4-element ONNX pads attribute to the symmetric
// (top, left) pair the engine understands.
func convPads(node *onnx.NodeProto) ([]int, error) {
	raw := node.AttrInts("pads")
	switch len(raw) {
	case 0:
		return []int{0, 0}, nil
	case 2:
		return []int{int(raw[0]), int(raw[1])}, nil
	case 4:
		if raw[0] != raw[2] || raw[1] != raw[3] {
			return nil, errors.Errorf("%s: asymmetric pads %v are not supported", node.OpType, raw)
		}
		return []int{int(raw[0]), int(raw[1])}, nil
	default:
		return nil, errors.Errorf("%s: pads %v must have 2 or 4 entries", node.OpType, raw)
	}
}
