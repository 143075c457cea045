package main

// file: cmd/unitybridge/editor.go

import (
	"github.com/spf13/cobra"

	"github.com/dkoosis/unitybridge/internal/config"
	"github.com/dkoosis/unitybridge/internal/transport"
)

func newEditorCommand() *cobra.Command {
	editorCmd := &cobra.Command{
		Use:   "editor",
		Short: "Serve a project as the editor side of the link",
		Long: `Serve a project directory as the editor side of the link, without a running
editor. Bridges connect over TCP, or through the NATS broker when the bridge
transport is nats.`,
		Args: cobra.NoArgs,
		RunE: editorAction,
	}
	editorCmd.Flags().String("project", "", "Project root (overrides config)")
	editorCmd.Flags().String("listen", "", "TCP address to accept bridges on (overrides config)")
	return editorCmd
}

func editorAction(cmd *cobra.Command, _ []string) error {
	a := appFrom(cmd)
	if root, _ := cmd.Flags().GetString("project"); root != "" {
		expanded, err := config.ExpandPath(root)
		if err != nil {
			return err
		}
		a.cfg.Project.Root = expanded
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		a.cfg.Editor.Listen = listen
	}

	ed, err := newEditor(a.cfg, a.logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var ln transport.Listener
	if a.cfg.Bridge.Transport == config.TransportNATS {
		opts, err := natsOptions(a.cfg, a.logger)
		if err != nil {
			return err
		}
		opts.Name = a.cfg.Server.Name + "-editor"
		ln, err = transport.ListenNATSURL(opts, a.logger)
		if err != nil {
			return err
		}
	} else {
		ln, err = transport.ListenTCP(ctx, a.cfg.Editor.Listen, a.logger)
		if err != nil {
			return err
		}
	}
	return ed.Serve(ctx, ln)
}
