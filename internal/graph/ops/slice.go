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

// buildSlice resolves the starts/ends/axes attributes against the input
// shape and applies a sliceOp with one concrete interval per axis.
func buildSlice(_ *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	if err := want(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	x := inputs[0]
	shape := x.Shape()
	rank := len(shape)

	starts := node.AttrInts("starts")
	ends := node.AttrInts("ends")
	axes := node.AttrInts("axes")
	if len(starts) == 0 || len(starts) != len(ends) {
		return nil, errors.Errorf("Slice: starts %v and ends %v must be non-empty and equal length", starts, ends)
	}
	if len(axes) == 0 {
		axes = make([]int64, len(starts))
		for i := range axes {
			axes[i] = int64(i)
		}
	}
	if len(axes) != len(starts) {
		return nil, errors.Errorf("Slice: axes %v does not match starts %v", axes, starts)
	}

	ranges := make([]interval, rank)
	for i, d := range shape {
		ranges[i] = interval{0, d}
	}
	for i, ax := range axes {
		a, err := normalizeAxis(node.OpType, ax, rank)
		if err != nil {
			return nil, err
		}
		ranges[a] = clampInterval(starts[i], ends[i], shape[a])
		if ranges[a].start >= ranges[a].end {
			return nil, errors.Errorf("Slice: empty range [%d, %d) on axis %d", ranges[a].start, ranges[a].end, a)
		}
	}

	op := &sliceOp{ranges: ranges}
	return single(gorgonia.ApplyOp(op, x))
}

// clampInterval applies the ONNX out-of-bounds rules: negative indices wrap
// once, everything else clamps to the dimension.
func clampInterval(start, end int64, dim int) interval {
	s, e := start, end
	if s < 0 {
		s += int64(dim)
	}
	if e < 0 {
		e += int64(dim)
	}
	if s < 0 {
		s = 0
	}
	if s > int64(dim) {
		s = int64(dim)
	}
	if e < 0 {
		e = 0
	}
	if e > int64(dim) {
		e = int64(dim)
	}
	return interval{int(s), int(e)}
}

// interval is a half-open [start, end) range over one axis.
type interval struct {
	start, end int
}

func (i interval) Start() int { return i.start }
func (i interval) End() int   { return i.end }
func (i interval) Step() int  { return 1 }

// sliceOp cuts a rectangular region out of its input. The view returned by
// the tensor package is materialized so downstream reshapes see a dense
// buffer, then reshaped back to the full-rank shape because the tensor
// package drops width-1 axes when slicing.
type sliceOp struct {
	ranges []interval
}

func (op *sliceOp) Arity() int { return 1 }

func (op *sliceOp) Type() hm.Type {
	t := gorgonia.TensorType{Dims: len(op.ranges), Of: hm.TypeVariable('a')}
	return hm.NewFnType(t, t)
}

func (op *sliceOp) InferShape(ins ...gorgonia.DimSizer) (tensor.Shape, error) {
	if len(ins) != 1 {
		return nil, errors.Errorf("slice: expected 1 input, got %d", len(ins))
	}
	out := make(tensor.Shape, len(op.ranges))
	for i, r := range op.ranges {
		out[i] = r.end - r.start
	}
	return out, nil
}

func (op *sliceOp) Do(vals ...gorgonia.Value) (gorgonia.Value, error) {
	if len(vals) != 1 {
		return nil, errors.Errorf("slice: expected 1 value, got %d", len(vals))
	}
	t, ok := vals[0].(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("slice: expected a dense tensor, got %T", vals[0])
	}
	slices := make([]tensor.Slice, len(op.ranges))
	for i, r := range op.ranges {
		slices[i] = r
	}
	view, err := t.Slice(slices...)
	if err != nil {
		return nil, errors.Wrap(err, "slice")
	}
	out, ok := view.Materialize().(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("slice: materialized to %T, expected a dense tensor", view)
	}
	shape, err := op.InferShape(t.Shape())
	if err != nil {
		return nil, err
	}
	if err := out.Reshape(shape...); err != nil {
		return nil, errors.Wrap(err, "slice")
	}
	return out, nil
}

func (op *sliceOp) ReturnsPtr() bool     { return false }
func (op *sliceOp) CallsExtern() bool    { return false }
func (op *sliceOp) OverwritesInput() int { return -1 }

func (op *sliceOp) WriteHash(h hash.Hash) { fmt.Fprint(h, op.String()) }

func (op *sliceOp) Hashcode() uint32 {
	h := fnv.New32a()
	op.WriteHash(h)
	return h.Sum32()
}

func (op *sliceOp) String() string {
	return fmt.Sprintf("Slice%v", op.ranges)
}
