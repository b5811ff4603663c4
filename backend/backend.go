// Package backend runs ONNX models and single operator nodes on the
// Gorgonia engine, following the contract the ONNX conformance-test
// harness drives.
//
// Example:
//
//	model, err := onnx.ParseFile("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rep, err := backend.Prepare(model, backend.DeviceCPU)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	outputs, err := rep.Run([]*tensor.Dense{input})
package backend

import (
	"gorgonia.org/tensor"

	internalbackend "github.com/gonnx-ml/gonnx/internal/backend"
	"github.com/gonnx-ml/gonnx/internal/onnx"
)

// DeviceCPU is the only supported device.
const DeviceCPU = internalbackend.DeviceCPU

// Rep is a prepared model, reusable across Run calls.
type Rep = internalbackend.Rep

// Prepare converts a model once for repeated execution.
func Prepare(model *onnx.ModelProto, device string) (*Rep, error) {
	return internalbackend.Prepare(model, device)
}

// RunNode executes a single operator node against the given inputs.
func RunNode(node *onnx.NodeProto, inputs []*tensor.Dense, device string) ([]*tensor.Dense, error) {
	return internalbackend.RunNode(node, inputs, device)
}

// SupportsDevice reports whether the named device can run models.
func SupportsDevice(device string) bool {
	return internalbackend.SupportsDevice(device)
}
