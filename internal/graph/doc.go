// Package graph turns parsed ONNX graphs into executable Gorgonia
// programs. A Symbol is the deferred form: the node list in dependency
// order plus the names flowing between nodes. Binding a Symbol against
// concrete input shapes produces a Module, which owns the expression graph
// and a tape machine and can run forward passes repeatedly.
package graph
