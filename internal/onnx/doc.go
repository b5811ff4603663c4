// Package onnx holds the ONNX object model and a protobuf wire-format
// decoder for it.
//
// The decoder is hand-written against the onnx.proto3 schema rather than
// generated, so the package carries no protobuf toolchain dependency and
// stays limited to the message subset the backend actually consumes:
// models, graphs, nodes, tensors, attributes and type/shape information.
//
// Everything in this package is read-only input for the converter in
// internal/graph; nothing here touches the execution engine.
package onnx
