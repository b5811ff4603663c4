package ops

import (
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"

	"github.com/gonnx-ml/gonnx/internal/onnx"
)

// Builder carries the graph under construction to operator builders.
type Builder struct {
	Graph *gorgonia.ExprGraph
	Opset int64
}

// BuildFunc translates one ONNX node into Gorgonia nodes. inputs holds the
// node's inputs in declaration order; optional inputs that were omitted are
// nil. The returned slice pairs up with the node's declared outputs.
type BuildFunc func(b *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error)

// Registry maps ONNX operator types to builders.
type Registry struct {
	builders map[string]BuildFunc
}

// NewRegistry returns a registry with all supported operators.
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]BuildFunc)}
	r.registerMathOps()
	r.registerActivations()
	r.registerShapeOps()
	r.registerNNOps()
	r.registerUtilityOps()
	return r
}

// Register adds or replaces a builder.
func (r *Registry) Register(opType string, fn BuildFunc) {
	r.builders[opType] = fn
}

// Get returns the builder for an operator type.
func (r *Registry) Get(opType string) (BuildFunc, bool) {
	fn, ok := r.builders[opType]
	return fn, ok
}

// Build translates node using the registered builder.
func (r *Registry) Build(b *Builder, node *onnx.NodeProto, inputs []*gorgonia.Node) ([]*gorgonia.Node, error) {
	fn, ok := r.builders[node.OpType]
	if !ok {
		return nil, errors.Errorf("unsupported operator %q", node.OpType)
	}
	return fn(b, node, inputs)
}

// Supported returns all supported operator types, sorted.
func (r *Registry) Supported() []string {
	ops := make([]string, 0, len(r.builders))
	for op := range r.builders {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// single wraps a builder producing exactly one output.
func single(n *gorgonia.Node, err error) ([]*gorgonia.Node, error) {
	if err != nil {
		return nil, err
	}
	return []*gorgonia.Node{n}, nil
}

// want checks the builder received the expected number of inputs.
func want(node *onnx.NodeProto, inputs []*gorgonia.Node, lo, hi int) error {
	if len(inputs) < lo || (hi >= 0 && len(inputs) > hi) {
		return errors.Errorf("%s: got %d inputs, want %d..%d", node.OpType, len(inputs), lo, hi)
	}
	for i := 0; i < lo; i++ {
		if inputs[i] == nil {
			return errors.Errorf("%s: required input %d is missing", node.OpType, i)
		}
	}
	return nil
}
