package main

// file: cmd/unitybridge/serve.go

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dkoosis/unitybridge/internal/metrics"
	"github.com/dkoosis/unitybridge/internal/server"
)

func newServeCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP surface over stdio",
		Long: `Serve the MCP surface over stdio.

The bridge keeps a link to the editor open in the background and redials
with backoff when it drops. Calls made while the editor is unreachable fail
with a transport error instead of blocking.`,
		Args: cobra.NoArgs,
		RunE: serveAction,
	}
	serveCmd.Flags().String("transport", "", "Editor link transport [tcp, nats, local] (overrides config)")
	return serveCmd
}

func serveAction(cmd *cobra.Command, _ []string) error {
	a := appFrom(cmd)
	if tr, _ := cmd.Flags().GetString("transport"); tr != "" {
		a.cfg.Bridge.Transport = tr
		if err := a.cfg.Validate(); err != nil {
			return err
		}
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
	srv, err := server.New(inv, server.Options{
		Name:    a.cfg.Server.Name,
		Version: Version,
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}

	a.logger.Info("Starting bridge.", "transport", a.cfg.Bridge.Transport, "tools", srv.Tools(), "resources", srv.Resources())
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.run(ctx) })
	g.Go(func() error {
		// The agent hanging up ends the session and the link with it.
		defer cancel()
		return srv.RunStdio(ctx)
	})
	return g.Wait()
}
