package ops

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// binaryOp pairs an elementwise Gorgonia op with its broadcasting variant.
type binaryOp struct {
	name  string
	plain func(a, b *gorgonia.Node) (*gorgonia.Node, error)
	broad func(a, b *gorgonia.Node, leftPattern, rightPattern []byte) (*gorgonia.Node, error)
}

var (
	addOp = binaryOp{"Add", gorgonia.Add, gorgonia.BroadcastAdd}
	subOp = binaryOp{"Sub", gorgonia.Sub, gorgonia.BroadcastSub}
	mulOp = binaryOp{"Mul", gorgonia.HadamardProd, gorgonia.BroadcastHadamardProd}
	divOp = binaryOp{"Div", gorgonia.HadamardDiv, gorgonia.BroadcastHadamardDiv}
)

// apply combines a and b under ONNX multidirectional broadcasting: ranks
// are right-aligned by prepending size-1 axes, then size-1 axes stretch to
// match the other operand.
func (op binaryOp) apply(a, b *gorgonia.Node) (*gorgonia.Node, error) {
	if a.IsScalar() || b.IsScalar() {
		return op.plain(a, b)
	}

	var err error
	as, bs := a.Shape(), b.Shape()
	if len(as) < len(bs) {
		if a, err = expandLeft(a, len(bs)-len(as)); err != nil {
			return nil, errors.Wrap(err, op.name)
		}
		as = a.Shape()
	} else if len(bs) < len(as) {
		if b, err = expandLeft(b, len(as)-len(bs)); err != nil {
			return nil, errors.Wrap(err, op.name)
		}
		bs = b.Shape()
	}

	var left, right []byte
	for i := range as {
		switch {
		case as[i] == bs[i]:
		case as[i] == 1:
			left = append(left, byte(i))
		case bs[i] == 1:
			right = append(right, byte(i))
		default:
			return nil, errors.Errorf("%s: cannot broadcast %v with %v", op.name, a.Shape(), b.Shape())
		}
	}
	if left == nil && right == nil {
		return op.plain(a, b)
	}
	return op.broad(a, b, left, right)
}

// expandLeft reshapes n to a higher rank by prepending size-1 axes.
func expandLeft(n *gorgonia.Node, count int) (*gorgonia.Node, error) {
	s := n.Shape()
	to := make(tensor.Shape, 0, len(s)+count)
	for i := 0; i < count; i++ {
		to = append(to, 1)
	}
	to = append(to, s...)
	return gorgonia.Reshape(n, to)
}
