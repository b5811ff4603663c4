// Package onnx exposes the ONNX model parser.
//
// Models are decoded from the ONNX protobuf wire format into plain Go
// structs, with no generated code and no protobuf runtime. The parsed
// messages are what the backend package consumes.
//
// Example:
//
//	model, err := onnx.ParseFile("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(model.Graph.Name, model.OpsetVersion())
package onnx

import internalonnx "github.com/gonnx-ml/gonnx/internal/onnx"

// ModelProto is a parsed ONNX model file.
type ModelProto = internalonnx.ModelProto

// GraphProto is a computation graph.
type GraphProto = internalonnx.GraphProto

// NodeProto is a single operator instance.
type NodeProto = internalonnx.NodeProto

// TensorProto carries serialized tensor data.
type TensorProto = internalonnx.TensorProto

// AttributeProto is a named operator attribute.
type AttributeProto = internalonnx.AttributeProto

// ValueInfoProto names and types a graph input, output or intermediate.
type ValueInfoProto = internalonnx.ValueInfoProto

// Parse decodes a serialized model.
func Parse(data []byte) (*ModelProto, error) {
	return internalonnx.Parse(data)
}

// ParseFile reads and decodes a model file.
func ParseFile(path string) (*ModelProto, error) {
	return internalonnx.ParseFile(path)
}

// ModelInfo summarizes a model without converting it.
//
// Use [ReadInfo] to inspect a model file before preparing it.
type ModelInfo = internalonnx.ModelInfo

// ReadInfo extracts metadata from a model file.
//
// Example:
//
//	info, err := onnx.ReadInfo("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Opset: %d\n", info.OpsetVersion)
//	fmt.Printf("Operators: %v\n", info.Operators)
func ReadInfo(path string) (*ModelInfo, error) {
	return internalonnx.ReadInfo(path)
}

// Info summarizes an already parsed model.
func Info(model *ModelProto) *ModelInfo {
	return internalonnx.Info(model)
}
