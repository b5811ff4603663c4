// Package ops translates ONNX operator nodes into Gorgonia expression
// nodes.
//
// Builders are looked up by op_type in a Registry and run at bind time,
// when the concrete input shapes are known. A builder receives the
// already-constructed Gorgonia inputs of its node and returns the node's
// outputs; it performs no computation itself. Execution happens later,
// when the surrounding module runs its tape machine.
//
// The operator set follows the attribute-based opsets of the early ONNX
// releases. Unsupported operators and unsupported attribute combinations
// fail the build; nothing is silently skipped.
package ops
