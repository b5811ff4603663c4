package ops

import (
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/chewxy/hm"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gonnx-ml/gonnx/internal/onnx"
)

// buildPad supports constant-mode padding. The pads attribute carries the
// leading pads for every axis followed by the trailing pads.
func buildPad(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	x := inputs[0]
	rank := len(x.Shape())
	if rank == 0 {
		return nil, errors.Errorf("Pad: input must have at least 1 dimension")
	}

	if mode := node.AttrString("mode", "constant"); mode != "constant" {
		return nil, errors.Errorf("Pad: mode %q is not supported", mode)
	}

	pads := node.AttrInts("pads")
	if len(pads) == 0 {
		pads = node.AttrInts("paddings")
	}
	if len(pads) != 2*rank {
		return nil, errors.Errorf("Pad: pads %v does not match rank %d", pads, rank)
	}

	op := &padOp{
		before: make([]int, rank),
		after:  make([]int, rank),
		value:  node.AttrFloat("value", 0),
	}
	for i := 0; i < rank; i++ {
		if pads[i] < 0 || pads[rank+i] < 0 {
			return nil, errors.Errorf("Pad: negative pads %v are not supported", pads)
		}
		op.before[i] = int(pads[i])
		op.after[i] = int(pads[rank+i])
	}
	return single(gorgonia.ApplyOp(op, x))
}

// padOp embeds its input into a larger constant-filled tensor.
type padOp struct {
	before, after []int
	value         float32
}

func (op *padOp) Arity() int { return 1 }

func (op *padOp) Type() hm.Type {
	t := gorgonia.TensorType{Dims: len(op.before), Of: hm.TypeVariable('a')}
	return hm.NewFnType(t, t)
}

func (op *padOp) InferShape(ins ...gorgonia.DimSizer) (tensor.Shape, error) {
	if len(ins) != 1 {
		return nil, errors.Errorf("pad: expected 1 input, got %d", len(ins))
	}
	in, ok := ins[0].(tensor.Shape)
	if !ok {
		return nil, errors.Errorf("pad: expected a shape, got %T", ins[0])
	}
	out := make(tensor.Shape, len(in))
	for i, d := range in {
		out[i] = op.before[i] + d + op.after[i]
	}
	return out, nil
}

func (op *padOp) Do(vals ...gorgonia.Value) (gorgonia.Value, error) {
	if len(vals) != 1 {
		return nil, errors.Errorf("pad: expected 1 value, got %d", len(vals))
	}
	in, ok := vals[0].(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("pad: expected a dense tensor, got %T", vals[0])
	}
	src, ok := in.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("pad: expected float32 data, got %T", in.Data())
	}

	inShape := in.Shape()
	outShape, err := op.InferShape(inShape)
	if err != nil {
		return nil, err
	}

	dst := make([]float32, outShape.TotalSize())
	if op.value != 0 {
		for i := range dst {
			dst[i] = op.value
		}
	}

	rank := len(inShape)
	outStrides := rowMajorStrides(outShape)

	// Copy contiguous runs along the innermost axis.
	rows := len(src) / inShape[rank-1]
	coord := make([]int, rank)
	for row := 0; row < rows; row++ {
		off := op.before[rank-1] * outStrides[rank-1]
		for i := 0; i < rank-1; i++ {
			off += (coord[i] + op.before[i]) * outStrides[i]
		}
		copy(dst[off:], src[row*inShape[rank-1]:(row+1)*inShape[rank-1]])

		for i := rank - 2; i >= 0; i-- {
			coord[i]++
			if coord[i] < inShape[i] {
				break
			}
			coord[i] = 0
		}
	}

	return tensor.New(tensor.WithShape(outShape...), tensor.WithBacking(dst)), nil
}

func rowMajorStrides(s tensor.Shape) []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

func (op *padOp) ReturnsPtr() bool     { return false }
func (op *padOp) CallsExtern() bool    { return false }
func (op *padOp) OverwritesInput() int { return -1 }

func (op *padOp) WriteHash(h hash.Hash) { fmt.Fprint(h, op.String()) }

func (op *padOp) Hashcode() uint32 {
	h := fnv.New32a()
	op.WriteHash(h)
	return h.Sum32()
}

func (op *padOp) String() string {
	return fmt.Sprintf("Pad(%v, %v, %v)", op.before, op.after, op.value)
}
