package onnx

import "sort"

// ModelInfo summarizes a model without converting it.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	InputNames      []string
	OutputNames     []string
	Operators       []string // distinct op types, sorted
	NodeCount       int
	ParamCount      int // number of initializer tensors
	ParamBytes      int64
}

// ReadInfo parses a model file and extracts its summary.
func ReadInfo(path string) (*ModelInfo, error) {
	model, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Info(model), nil
}

// Info extracts a summary from a parsed model.
func Info(model *ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       model.IRVersion,
		OpsetVersion:    model.OpsetVersion(),
		ProducerName:    model.ProducerName,
		ProducerVersion: model.ProducerVersion,
	}
	graph := model.Graph
	if graph == nil {
		return info
	}

	// Graph inputs include initializers; only the rest are fed at run time.
	initNames := make(map[string]bool, len(graph.Initializers))
	for i := range graph.Initializers {
		initNames[graph.Initializers[i].Name] = true
	}
	for i := range graph.Inputs {
		if !initNames[graph.Inputs[i].Name] {
			info.InputNames = append(info.InputNames, graph.Inputs[i].Name)
		}
	}
	for i := range graph.Outputs {
		info.OutputNames = append(info.OutputNames, graph.Outputs[i].Name)
	}

	seen := make(map[string]bool)
	for i := range graph.Nodes {
		op := graph.Nodes[i].OpType
		if !seen[op] {
			seen[op] = true
			info.Operators = append(info.Operators, op)
		}
	}
	sort.Strings(info.Operators)

	info.NodeCount = len(graph.Nodes)
	info.ParamCount = len(graph.Initializers)
	for i := range graph.Initializers {
		info.ParamBytes += initializerBytes(&graph.Initializers[i])
	}
	return info
}

func initializerBytes(t *TensorProto) int64 {
	if len(t.RawData) > 0 {
		return int64(len(t.RawData))
	}
	n := int64(1)
	for _, d := range t.Dims {
		n *= d
	}
	switch t.DataType {
	case TensorFloat, TensorInt32, TensorUint32:
		return n * 4
	case TensorDouble, TensorInt64, TensorUint64:
		return n * 8
	case TensorFloat16, TensorBfloat16, TensorInt16, TensorUint16:
		return n * 2
	default:
		return n
	}
}
