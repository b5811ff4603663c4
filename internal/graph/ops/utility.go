package ops

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gonnx-ml/gonnx/internal/onnx"
)

func (r *Registry) registerUtilityOps() {
	r.Register("Constant", buildConstant)
	r.Register("Identity", buildIdentity)
	r.Register("Dropout", buildDropout)
	r.Register("Cast", buildCast)
	r.Register("Shape", buildShape)
}

func buildConstant(b *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 0, 0); err != nil {
		return nil, err
	}
	tp := node.AttrTensor("value")
	if tp == nil {
		return nil, errors.Errorf("Constant: missing value attribute")
	}
	dense, err := TensorFromProto(tp)
	if err != nil {
		return nil, errors.Wrap(err, "Constant")
	}
	n := gorgonia.NodeFromAny(b.Graph, dense, gorgonia.WithName(node.Outputs[0]))
	return []*gorgonia.Node{n}, nil
}

func buildIdentity(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	return []*gorgonia.Node{inputs[0]}, nil
}

// buildDropout passes the input through untouched. Inference never applies
// the mask, so the ratio attribute is irrelevant.
func buildDropout(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	return []*gorgonia.Node{inputs[0]}, nil
}

// buildCast only accepts casts that leave the element type alone. The graph
// runs everything as float32, so a genuine conversion has nowhere to go.
func buildCast(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	to := int32(node.AttrInt("to", int64(onnx.TensorFloat)))
	switch to {
	case onnx.TensorFloat, onnx.TensorFloat16, onnx.TensorDouble:
		return []*gorgonia.Node{inputs[0]}, nil
	default:
		return nil, errors.Errorf("Cast: conversion to data type %d is not supported", to)
	}
}

// buildShape materializes the input's shape as an int64 constant so that it
// can feed a Reshape further down the graph.
func buildShape(b *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	shape := inputs[0].Shape()
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	dense := tensor.New(tensor.WithShape(len(dims)), tensor.WithBacking(dims))
	n := gorgonia.NodeFromAny(b.Graph, dense, gorgonia.WithName(node.Outputs[0]))
	return []*gorgonia.Node{n}, nil
}

// int64sOf reads the integer contents of a constant node. Operators with
// data-dependent shape arguments can only follow nodes whose value is fixed
// when the graph is assembled.
func int64sOf(n *gorgonia.Node) ([]int64, error) {
	v := n.Value()
	if v == nil {
		return nil, errors.Errorf("node %q has no constant value", n.Name())
	}
	dense, ok := v.(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("node %q holds %T, expected a dense tensor", n.Name(), v)
	}
	switch data := dense.Data().(type) {
	case []int64:
		out := make([]int64, len(data))
		copy(out, data)
		return out, nil
	case []int32:
		out := make([]int64, len(data))
		for i, d := range data {
			out[i] = int64(d)
		}
		return out, nil
	case int64:
		return []int64{data}, nil
	case int32:
		return []int64{int64(data)}, nil
	default:
		return nil, errors.Errorf("node %q holds %T, expected integers", n.Name(), dense.Data())
	}
}
