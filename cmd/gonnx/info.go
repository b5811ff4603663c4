package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gonnx-ml/gonnx/onnx"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <model.onnx>",
		Short: "Print model metadata without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := onnx.ReadInfo(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "IR version:  %d\n", info.IRVersion)
			fmt.Fprintf(out, "Opset:       %d\n", info.OpsetVersion)
			if info.ProducerName != "" {
				fmt.Fprintf(out, "Producer:    %s %s\n", info.ProducerName, info.ProducerVersion)
			}
			fmt.Fprintf(out, "Inputs:      %s\n", strings.Join(info.InputNames, ", "))
			fmt.Fprintf(out, "Outputs:     %s\n", strings.Join(info.OutputNames, ", "))
			fmt.Fprintf(out, "Nodes:       %d\n", info.NodeCount)
			fmt.Fprintf(out, "Parameters:  %s tensors (%s)\n",
				humanize.Comma(int64(info.ParamCount)), humanize.Bytes(uint64(info.ParamBytes)))
			fmt.Fprintf(out, "Operators:   %s\n", strings.Join(info.Operators, ", "))
			return nil
		},
	}
}
