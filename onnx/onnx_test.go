package onnx

import (
	"testing"
)

func TestParseMinimalModel(t *testing.T) {
	// ir_version = 7, opset_import = [{version: 9}]
	data := []byte{
		0x08, 0x07, // field 1, varint 7
		0x42, 0x02, 0x10, 0x09, // field 8, OperatorSetId{version: 9}
	}
	model, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if model.IRVersion != 7 {
		t.Errorf("IRVersion = %d, want 7", model.IRVersion)
	}
	if got := model.OpsetVersion(); got != 9 {
		t.Errorf("OpsetVersion() = %d, want 9", got)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := Parse([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected an error for malformed input")
	}
}
