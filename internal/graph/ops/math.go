package ops

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"

	"github.com/gonnx-ml/gonnx/internal/onnx"
)

// registerMathOps adds arithmetic, matrix and reduction operators.
func (r *Registry) registerMathOps() {
	r.Register("Add", buildBinary(addOp))
	r.Register("Sub", buildBinary(subOp))
	r.Register("Mul", buildBinary(mulOp))
	r.Register("Div", buildBinary(divOp))
	r.Register("Pow", buildPow)
	r.Register("Sum", buildSum)
	r.Register("Neg", buildUnary(gorgonia.Neg))
	r.Register("Abs", buildUnary(gorgonia.Abs))
	r.Register("Sqrt", buildUnary(gorgonia.Sqrt))
	r.Register("Exp", buildUnary(gorgonia.Exp))
	r.Register("Log", buildUnary(gorgonia.Log))
	r.Register("MatMul", buildMatMul)
	r.Register("Gemm", buildGemm)
	r.Register("ReduceSum", buildReduce(gorgonia.Sum))
	r.Register("ReduceMean", buildReduce(gorgonia.Mean))
	r.Register("ReduceMax", buildReduce(gorgonia.Max))
}

func buildBinary(op binaryOp) BuildFunc {
	return func(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
		if err := want(node, inputs, 2, 2); err != nil {
			return nil, err
		}
		return single(op.apply(inputs[0], inputs[1]))
	}
}

func buildUnary(fn func(*gorgonia.Node) (*gorgonia.Node, error)) BuildFunc {
	return func(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
		if err := want(node, inputs, 1, 1); err != nil {
			return nil, err
		}
		return single(fn(inputs[0]))
	}
}

func buildPow(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 2, 2); err != nil {
		return nil, err
	}
	a, b := inputs[0], inputs[1]
	if !a.IsScalar() && !b.IsScalar() && !a.Shape().Eq(b.Shape()) {
		return nil, errors.Errorf("Pow: broadcasting %v with %v is not supported", a.Shape(), b.Shape())
	}
	return single(gorgonia.Pow(a, b))
}

// buildSum folds the variadic ONNX Sum into a chain of additions.
func buildSum(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, -1); err != nil {
		return nil, err
	}
	out := inputs[0]
	var err error
	for _, in := range inputs[1:] {
		if out, err = addOp.apply(out, in); err != nil {
			return nil, err
		}
	}
	return []*gorgonia.Node{out}, nil
}

func buildMatMul(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 2, 2); err != nil {
		return nil, err
	}
	a, b := inputs[0], inputs[1]
	ra, rb := len(a.Shape()), len(b.Shape())
	if ra > 2 || rb > 2 {
		if ra != rb {
			return nil, errors.Errorf("MatMul: rank mismatch %d vs %d", ra, rb)
		}
		return single(gorgonia.BatchedMatMul(a, b))
	}
	return single(gorgonia.Mul(a, b))
}

// buildGemm implements Y = alpha*op(A)*op(B) + beta*C.
func buildGemm(b *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 2, 3); err != nil {
		return nil, err
	}

	alpha := node.AttrFloat("alpha", 1)
	beta := node.AttrFloat("beta", 1)

	a, w := inputs[0], inputs[1]
	var err error
	if node.AttrInt("transA", 0) != 0 {
		if a, err = gorgonia.Transpose(a, 1, 0); err != nil {
			return nil, err
		}
	}
	if node.AttrInt("transB", 0) != 0 {
		if w, err = gorgonia.Transpose(w, 1, 0); err != nil {
			return nil, err
		}
	}

	out, err := gorgonia.Mul(a, w)
	if err != nil {
		return nil, err
	}
	if alpha != 1 {
		if out, err = gorgonia.Mul(scalarConst(b, scalarName(node, "alpha"), alpha), out); err != nil {
			return nil, err
		}
	}

	if len(inputs) == 3 && inputs[2] != nil && beta != 0 {
		c := inputs[2]
		if beta != 1 {
			if c, err = gorgonia.Mul(scalarConst(b, scalarName(node, "beta"), beta), c); err != nil {
				return nil, err
			}
		}
		if out, err = addOp.apply(out, c); err != nil {
			return nil, err
		}
	}
	return []*gorgonia.Node{out}, nil
}

// buildReduce adapts a Gorgonia reduction (which drops the reduced axes) to
// the ONNX axes/keepdims contract.
func buildReduce(reduce func(*gorgonia.Node, ...int) (*gorgonia.Node, error)) BuildFunc {
	return func(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
		if err := want(node, inputs, 1, 1); err != nil {
			return nil, err
		}
		x := inputs[0]
		rank := len(x.Shape())

		var along []int
		if axes := node.AttrInts("axes"); len(axes) > 0 {
			along = make([]int, len(axes))
			for i, ax := range axes {
				a, err := normalizeAxis(node.OpType, ax, rank)
				if err != nil {
					return nil, err
				}
				along[i] = a
			}
		} else {
			along = make([]int, rank)
			for i := range along {
				along[i] = i
			}
		}

		out, err := reduce(x, along...)
		if err != nil {
			return nil, err
		}
		if node.AttrInt("keepdims", 1) != 0 {
			kept := x.Shape().Clone()
			for _, ax := range along {
				kept[ax] = 1
			}
			return single(gorgonia.Reshape(out, kept))
		}
		return []*gorgonia.Node{out}, nil
	}
}

// scalarConst adds a named scalar constant. The expression graph
// deduplicates constants by name, so every scalar needs a distinct one.
func scalarConst(b *Builder, name string, v float32) *gorgonia.Node {
	return gorgonia.NodeFromAny(b.Graph, v, gorgonia.WithName(name))
}

// scalarName derives a graph-unique constant name from the node that owns
// the attribute.
func scalarName(node *onnx.NodeProto, attr string) string {
	base := node.Name
	if len(node.Outputs) > 0 {
		base = node.Outputs[0]
	}
	return base + ":" + attr
}

func normalizeAxis(op string, axis int64, rank int) (int, error) {
	a := int(axis)
	if a < 0 {
		a += rank
	}
	if a < 0 || a >= rank {
		return 0, errors.Errorf("%s: axis %d out of range for rank %d", op, axis, rank)
	}
	return a, nil
}
