package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gorgonia.org/tensor"

	"github.com/gonnx-ml/gonnx/backend"
	"github.com/gonnx-ml/gonnx/onnx"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <model.onnx>",
		Short: "Run a model once on a synthetic input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := onnx.ParseFile(args[0])
			if err != nil {
				return err
			}

			shape, err := parseShape(activeCfg.Run.Shape)
			if err != nil {
				return err
			}
			input, err := makeInput(shape, activeCfg.Run.Fill, activeCfg.Run.Seed)
			if err != nil {
				return err
			}

			rep, err := backend.Prepare(model, activeCfg.Device)
			if err != nil {
				return err
			}
			slog.Info("model prepared", "path", args[0], "input_shape", shape)

			outs, err := rep.Run([]*tensor.Dense{input})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, o := range outs {
				fmt.Fprintf(out, "shape %v\n%v\n", o.Shape(), o.Data())
			}
			return nil
		},
	}
}

func parseShape(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	shape := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("bad shape %q", s)
		}
		shape = append(shape, d)
	}
	return shape, nil
}

// makeInput builds the synthetic input tensor: zeros, ones, random, or an
// explicit comma-separated value list matching the shape's element count.
func makeInput(shape []int, fill string, seed int64) (*tensor.Dense, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)

	switch fill {
	case "zeros":
	case "ones":
		for i := range data {
			data[i] = 1
		}
	case "random":
		rng := rand.New(rand.NewSource(seed))
		for i := range data {
			data[i] = rng.Float32()
		}
	default:
		parts := strings.Split(fill, ",")
		if len(parts) != n {
			return nil, fmt.Errorf("fill lists %d values, shape %v wants %d", len(parts), shape, n)
		}
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
			if err != nil {
				return nil, fmt.Errorf("bad fill value %q", p)
			}
			data[i] = float32(v)
		}
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)), nil
}
