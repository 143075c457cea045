package main

// file: cmd/unitybridge/calls.go

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dkoosis/unitybridge/internal/bridge"
	"github.com/dkoosis/unitybridge/internal/handlers"
	"github.com/dkoosis/unitybridge/internal/registry"
)

func newCallsCommand() *cobra.Command {
	callsCmd := &cobra.Command{
		Use:   "calls",
		Short: "List the registered calls and how agents see them",
		Args:  cobra.NoArgs,
		RunE:  callsAction,
	}
	callsCmd.Flags().Bool("json", false, "Print name, description and parameter schema as JSON")
	return callsCmd
}

type callInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Tool        bool            `json:"tool"`
	ResourceURI string          `json:"resourceUri,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// describeCalls lists the calls without touching the editor link.
func describeCalls(editorVersions string) ([]callInfo, error) {
	reg := registry.New(nil)
	if _, err := handlers.Register(reg, handlers.Deps{
		Caller:         bridge.New(bridge.Options{}).Caller(),
		EditorVersions: editorVersions,
	}); err != nil {
		return nil, err
	}
	reg.Seal()

	var infos []callInfo
	for _, d := range reg.Descriptors() {
		info := callInfo{
			Name:        d.Name,
			Description: d.Description,
			Tool:        d.Tool,
			InputSchema: d.Schema().Document(),
		}
		if d.Resource != nil {
			info.ResourceURI = d.Resource.URI
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func callsAction(cmd *cobra.Command, _ []string) error {
	a := appFrom(cmd)
	infos, err := describeCalls(a.cfg.Bridge.EditorVersions)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 4, 8, 4, ' ', 0)
	fmt.Fprintln(w, "NAME\tEXPOSED AS\tDESCRIPTION")
	for _, info := range infos {
		var exposed []string
		if info.Tool {
			exposed = append(exposed, "tool")
		}
		if info.ResourceURI != "" {
			exposed = append(exposed, info.ResourceURI)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, strings.Join(exposed, ", "), firstLine(info.Description))
	}
	return w.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
