package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gonnx-ml/gonnx/internal/graph/ops"
)

func newOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List supported ONNX operators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, op := range ops.NewRegistry().Supported() {
				fmt.Fprintln(cmd.OutOrStdout(), op)
			}
			return nil
		},
	}
}
