package graph

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gonnx-ml/gonnx/internal/graph/ops"
)

// Binding fixes one data input to a concrete shape and element type.
type Binding struct {
	Name  string
	Shape tensor.Shape
	Dtype tensor.Dtype
}

// Module is a symbol bound at concrete shapes, ready to run. Feeding a
// forward pass with differently shaped inputs triggers a transparent
// rebind at the new shapes.
type Module struct {
	sym      *Symbol
	params   Params
	registry *ops.Registry

	bindings []Binding
	g        *gorgonia.ExprGraph
	vm       gorgonia.VM
	inputs   []*gorgonia.Node
	outputs  []*gorgonia.Node
}

// NewModule binds sym at the given input shapes. params supplies values for
// the symbol's parameters; parameters with a declared shape but no supplied
// value are initialized from a standard Gaussian.
func NewModule(sym *Symbol, bindings []Binding, params Params) (*Module, error) {
	if len(bindings) != len(sym.Inputs) {
		return nil, errors.Errorf("graph %q wants %d inputs, got %d bindings", sym.Name, len(sym.Inputs), len(bindings))
	}
	m := &Module{sym: sym, params: params, registry: ops.NewRegistry()}
	if err := m.bind(bindings); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) bind(bindings []Binding) error {
	if m.vm != nil {
		m.vm.Close()
		m.vm = nil
	}

	g := gorgonia.NewGraph()
	env := make(map[string]*gorgonia.Node)

	inputs := make([]*gorgonia.Node, len(bindings))
	for i, bnd := range bindings {
		if len(bnd.Shape) == 0 {
			return errors.Errorf("binding %q has no shape", bnd.Name)
		}
		dt := bnd.Dtype
		if dt.Type == nil {
			dt = tensor.Float32
		}
		n := gorgonia.NewTensor(g, dt, len(bnd.Shape),
			gorgonia.WithShape(bnd.Shape...), gorgonia.WithName(bnd.Name))
		env[bnd.Name] = n
		inputs[i] = n
	}

	for name, value := range m.params {
		env[name] = gorgonia.NodeFromAny(g, value, gorgonia.WithName(name))
	}

	builder := &ops.Builder{Graph: g, Opset: m.sym.Opset}
	for i := range m.sym.Nodes {
		node := &m.sym.Nodes[i]
		ins := make([]*gorgonia.Node, len(node.Inputs))
		for j, name := range node.Inputs {
			if name == "" {
				continue
			}
			in, ok := env[name]
			if !ok {
				if in, ok = m.initParam(g, name); !ok {
					return errors.Errorf("node %q reads %q, which nothing produces", node.Name, name)
				}
				env[name] = in
			}
			ins[j] = in
		}

		outs, err := m.registry.Build(builder, node, ins)
		if err != nil {
			return errors.Wrapf(err, "node %q", node.Name)
		}
		for j, out := range outs {
			if j < len(node.Outputs) && node.Outputs[j] != "" {
				env[node.Outputs[j]] = out
			}
		}
	}

	outputs := make([]*gorgonia.Node, len(m.sym.Outputs))
	for i, name := range m.sym.Outputs {
		out, ok := env[name]
		if !ok {
			return errors.Errorf("graph output %q was never produced", name)
		}
		outputs[i] = out
	}

	m.bindings = append([]Binding(nil), bindings...)
	m.g = g
	m.inputs = inputs
	m.outputs = outputs
	m.vm = gorgonia.NewTapeMachine(g)
	return nil
}

// initParam materializes a parameter that was never supplied a value, if
// the graph declared a concrete shape for it.
func (m *Module) initParam(g *gorgonia.ExprGraph, name string) (*gorgonia.Node, bool) {
	shape, ok := m.sym.DeclaredShape(name)
	if !ok {
		return nil, false
	}
	n := gorgonia.NewTensor(g, tensor.Float32, len(shape),
		gorgonia.WithShape(shape...), gorgonia.WithName(name),
		gorgonia.WithInit(gorgonia.Gaussian(0, 1)))
	return n, true
}

// SetParams replaces the module's parameter values and rebuilds the graph
// so the new values take effect.
func (m *Module) SetParams(params Params) error {
	m.params = params
	return m.bind(m.bindings)
}

// Forward runs one inference pass. args pair up positionally with the
// symbol's data inputs; when their shapes differ from the bound ones the
// module rebinds first.
func (m *Module) Forward(args []*tensor.Dense) ([]*tensor.Dense, error) {
	if len(args) != len(m.bindings) {
		return nil, errors.Errorf("graph %q wants %d inputs, got %d", m.sym.Name, len(m.bindings), len(args))
	}

	rebind := false
	for i, arg := range args {
		if !arg.Shape().Eq(m.bindings[i].Shape) {
			rebind = true
			break
		}
	}
	if rebind {
		next := make([]Binding, len(args))
		for i, arg := range args {
			next[i] = Binding{Name: m.bindings[i].Name, Shape: arg.Shape().Clone(), Dtype: arg.Dtype()}
		}
		if err := m.bind(next); err != nil {
			return nil, errors.Wrap(err, "rebind")
		}
	}

	for i, arg := range args {
		if err := gorgonia.Let(m.inputs[i], arg); err != nil {
			return nil, errors.Wrapf(err, "feeding %q", m.bindings[i].Name)
		}
	}

	m.vm.Reset()
	if err := m.vm.RunAll(); err != nil {
		return nil, errors.Wrapf(err, "running graph %q", m.sym.Name)
	}

	results := make([]*tensor.Dense, len(m.outputs))
	for i, out := range m.outputs {
		dense, err := DenseOf(out.Value())
		if err != nil {
			return nil, errors.Wrapf(err, "output %q", m.sym.Outputs[i])
		}
		results[i] = dense
	}
	return results, nil
}

// Outputs returns the symbol's output names in result order.
func (m *Module) Outputs() []string { return m.sym.Outputs }

// Close releases the underlying virtual machine.
func (m *Module) Close() error {
	if m.vm == nil {
		return nil
	}
	err := m.vm.Close()
	m.vm = nil
	return err
}
