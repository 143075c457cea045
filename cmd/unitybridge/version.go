package main

// file: cmd/unitybridge/version.go

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dkoosis/unitybridge/internal/protocol"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "unitybridge %s\n", Version)
			fmt.Fprintf(out, "  commit:   %s\n", commitHash)
			fmt.Fprintf(out, "  built:    %s\n", buildDate)
			fmt.Fprintf(out, "  protocol: %s\n", protocol.ProtocolVersion)
			fmt.Fprintf(out, "  go:       %s\n", runtime.Version())
		},
	}
}
