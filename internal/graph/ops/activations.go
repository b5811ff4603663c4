package ops

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gonnx-ml/gonnx/internal/onnx"
)

func (r *Registry) registerActivations() {
	r.Register("Relu", buildUnary(gorgonia.Rectify))
	r.Register("Sigmoid", buildUnary(gorgonia.Sigmoid))
	r.Register("Tanh", buildUnary(gorgonia.Tanh))
	r.Register("Softmax", buildSoftmax)
	r.Register("LeakyRelu", buildLeakyRelu)
}

// buildSoftmax follows the opset-1 contract: the input is coerced to 2D
// around the axis attribute and the softmax runs over the trailing half.
func buildSoftmax(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	x := inputs[0]
	shape := x.Shape()
	rank := len(shape)

	axis, err := normalizeAxis(node.OpType, node.AttrInt("axis", 1), rank)
	if err != nil {
		return nil, err
	}

	if rank == 2 && axis == 1 {
		return single(gorgonia.SoftMax(x, 1))
	}

	rows, cols := 1, 1
	for i := 0; i < axis; i++ {
		rows *= shape[i]
	}
	for i := axis; i < rank; i++ {
		cols *= shape[i]
	}
	flat, err := gorgonia.Reshape(x, tensor.Shape{rows, cols})
	if err != nil {
		return nil, err
	}
	sm, err := gorgonia.SoftMax(flat, 1)
	if err != nil {
		return nil, err
	}
	return single(gorgonia.Reshape(sm, shape.Clone()))
}

// buildLeakyRelu composes relu(x) - alpha*relu(-x).
func buildLeakyRelu(b *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	x := inputs[0]
	alpha := node.AttrFloat("alpha", 0.01)

	pos, err := gorgonia.Rectify(x)
	if err != nil {
		return nil, err
	}
	nx, err := gorgonia.Neg(x)
	if err != nil {
		return nil, err
	}
	neg, err := gorgonia.Rectify(nx)
	if err != nil {
		return nil, err
	}
	scaled, err := gorgonia.Mul(scalarConst(b, scalarName(node, "alpha"), alpha), neg)
	if err != nil {
		return nil, err
	}
	out, err := gorgonia.Sub(pos, scaled)
	if err != nil {
		return nil, errors.Wrap(err, "LeakyRelu")
	}
	return []*gorgonia.Node{out}, nil
}
