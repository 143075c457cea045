package main

// file: cmd/unitybridge/call.go

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dkoosis/unitybridge/internal/metrics"
	"github.com/dkoosis/unitybridge/internal/protocol"
)

func newCallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "call NAME [PARAMS_JSON]",
		Short: "Invoke one call and print the response envelope",
		Example: `  $ unitybridge call get_scripts '{"searchPattern":"Enemy","includeContent":true}'
  $ unitybridge call get_editor_info`,
		Args: cobra.RangeArgs(1, 2),
		RunE: callAction,
	}
}

func callAction(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)
	name := args[0]
	params := json.RawMessage(`{}`)
	if len(args) == 2 {
		params = json.RawMessage(args[1])
	}

	collector := metrics.NewCollector(errorBufferSize)
	l, err := newLink(a.cfg, collector, a.logger)
	if err != nil {
		return err
	}
	defer l.close()
	inv, err := newInvoker(a.cfg, l, collector, a.logger)
	if err != nil {
		return err
	}
	// Unknown names fail before dialling.
	desc, err := inv.Registry().Resolve(name)
	if err != nil {
		return err
	}
	if !desc.Local {
		if err := l.connectOnce(cmd.Context()); err != nil {
			return errors.Wrap(err, "failed to connect to editor")
		}
	}

	resp, callErr := inv.InvokeJSON(cmd.Context(), name, params)
	if callErr != nil {
		resp = protocol.FailureFromError(callErr)
	}
	if err := printEnvelope(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if callErr != nil {
		return errors.Newf("%s failed: %s", name, protocol.KindOf(callErr))
	}
	return nil
}

// printEnvelope writes resp as indented JSON, green on success and red on
// failure when the output is a terminal.
func printEnvelope(w io.Writer, resp *protocol.Response) error {
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to format response")
	}
	paint := color.GreenString
	if !resp.Success {
		paint = color.RedString
	}
	_, err = fmt.Fprintln(w, paint("%s", out))
	return err
}
