package graph

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gonnx-ml/gonnx/internal/graph/ops"
	"github.com/gonnx-ml/gonnx/internal/onnx"
)

// Params maps parameter names to their values.
type Params map[string]*tensor.Dense

// Symbol is a deferred compute program: operator nodes in dependency order
// plus the names of the values entering and leaving the graph. It carries
// no concrete shapes; those arrive when the symbol is bound into a Module.
type Symbol struct {
	Name    string
	Nodes   []onnx.NodeProto
	Inputs  []string // data inputs in feed order
	Outputs []string
	Opset   int64

	// declared shapes from the graph's value infos, where concrete
	shapes map[string]tensor.Shape
}

// FromModel builds a symbol from a full graph. Initializers become
// parameters, and the remaining graph inputs are renamed input_0, input_1,
// ... in declaration order, with node references rewritten to match.
func FromModel(g *onnx.GraphProto, opset int64) (*Symbol, Params, error) {
	if g == nil {
		return nil, nil, errors.New("model has no graph")
	}

	params := make(Params, len(g.Initializers))
	for i := range g.Initializers {
		init := &g.Initializers[i]
		if init.Name == "" {
			return nil, nil, errors.Errorf("initializer %d has no name", i)
		}
		dense, err := ops.TensorFromProto(init)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "initializer %q", init.Name)
		}
		params[init.Name] = dense
	}

	paramShapes := make(map[string]tensor.Shape, len(params))
	for name, p := range params {
		paramShapes[name] = p.Shape().Clone()
	}

	sym := &Symbol{
		Name:   g.Name,
		Opset:  opset,
		shapes: paramShapes,
	}

	rename := make(map[string]string)
	for _, vi := range g.Inputs {
		if _, isParam := params[vi.Name]; isParam {
			if s := valueShape(&vi); s != nil {
				sym.shapes[vi.Name] = s
			}
			continue
		}
		alias := fmt.Sprintf("input_%d", len(sym.Inputs))
		rename[vi.Name] = alias
		sym.Inputs = append(sym.Inputs, alias)
		if s := valueShape(&vi); s != nil {
			sym.shapes[alias] = s
		}
	}

	sym.Nodes = make([]onnx.NodeProto, len(g.Nodes))
	for i, node := range g.Nodes {
		inputs := make([]string, len(node.Inputs))
		for j, in := range node.Inputs {
			if alias, ok := rename[in]; ok {
				in = alias
			}
			inputs[j] = in
		}
		node.Inputs = inputs
		sym.Nodes[i] = node
	}
	if err := sortNodes(sym); err != nil {
		return nil, nil, err
	}

	for _, vi := range g.Outputs {
		sym.Outputs = append(sym.Outputs, vi.Name)
	}
	if len(sym.Outputs) == 0 {
		return nil, nil, errors.Errorf("graph %q declares no outputs", g.Name)
	}
	return sym, params, nil
}

// FromNode wraps a single operator node as a one-node symbol. The node's
// inputs keep their names and all become data inputs.
func FromNode(node *onnx.NodeProto, opset int64) (*Symbol, error) {
	if node == nil || node.OpType == "" {
		return nil, errors.New("node has no operator type")
	}
	if len(node.Outputs) == 0 {
		return nil, errors.Errorf("node %q declares no outputs", node.Name)
	}
	sym := &Symbol{
		Name:    node.Name,
		Nodes:   []onnx.NodeProto{*node},
		Outputs: append([]string(nil), node.Outputs...),
		Opset:   opset,
		shapes:  make(map[string]tensor.Shape),
	}
	for _, in := range node.Inputs {
		if in != "" {
			sym.Inputs = append(sym.Inputs, in)
		}
	}
	return sym, nil
}

// DeclaredShape reports the shape recorded for a value in the graph's type
// annotations, if every dimension was concrete.
func (s *Symbol) DeclaredShape(name string) (tensor.Shape, bool) {
	shape, ok := s.shapes[name]
	return shape, ok
}

// sortNodes orders s.Nodes so every node follows the producers of its
// inputs. Serialized graphs are usually already sorted; this tolerates the
// ones that are not and rejects cycles.
func sortNodes(s *Symbol) error {
	producer := make(map[string]int)
	for i := range s.Nodes {
		for _, out := range s.Nodes[i].Outputs {
			producer[out] = i
		}
	}

	const (
		unseen = iota
		visiting
		done
	)
	state := make([]int, len(s.Nodes))
	order := make([]onnx.NodeProto, 0, len(s.Nodes))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return errors.Errorf("graph %q has a cycle at node %q", s.Name, s.Nodes[i].Name)
		}
		state[i] = visiting
		for _, in := range s.Nodes[i].Inputs {
			if p, ok := producer[in]; ok && p != i {
				if err := visit(p); err != nil {
					return err
				}
			}
		}
		state[i] = done
		order = append(order, s.Nodes[i])
		return nil
	}
	for i := range s.Nodes {
		if err := visit(i); err != nil {
			return err
		}
	}
	s.Nodes = order
	return nil
}

// valueShape extracts a concrete shape from a value annotation; symbolic or
// zero dimensions disqualify it.
func valueShape(vi *onnx.ValueInfoProto) tensor.Shape {
	if vi.Type == nil || vi.Type.TensorType == nil || vi.Type.TensorType.Shape == nil {
		return nil
	}
	dims := vi.Type.TensorType.Shape.Dims
	if len(dims) == 0 {
		return nil
	}
	shape := make(tensor.Shape, len(dims))
	for i, d := range dims {
		if d.DimValue <= 0 {
			return nil
		}
		shape[i] = int(d.DimValue)
	}
	return shape
}
