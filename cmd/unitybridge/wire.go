package main

// file: cmd/unitybridge/wire.go

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/unitybridge/internal/bridge"
	"github.com/dkoosis/unitybridge/internal/config"
	"github.com/dkoosis/unitybridge/internal/editor"
	"github.com/dkoosis/unitybridge/internal/handlers"
	"github.com/dkoosis/unitybridge/internal/invoker"
	"github.com/dkoosis/unitybridge/internal/logging"
	"github.com/dkoosis/unitybridge/internal/metrics"
	"github.com/dkoosis/unitybridge/internal/project"
	"github.com/dkoosis/unitybridge/internal/registry"
	"github.com/dkoosis/unitybridge/internal/secret"
	"github.com/dkoosis/unitybridge/internal/transport"
)

// errorBufferSize is how many recent errors the metrics snapshot keeps.
const errorBufferSize = 20

// link is the bridge's way to the editor for the configured transport.
type link struct {
	caller handlers.Caller
	// dispatcher and dial are nil for the in-process editor.
	dispatcher *bridge.Dispatcher
	dial       transport.Dialer
	backoff    transport.BackoffConfig
}

// run keeps the link connected until ctx ends.
func (l *link) run(ctx context.Context) error {
	if l.dispatcher == nil {
		<-ctx.Done()
		return nil
	}
	return l.dispatcher.Run(ctx, l.dial, l.backoff)
}

// connectOnce attaches a single connection, for one-shot commands.
func (l *link) connectOnce(ctx context.Context) error {
	if l.dispatcher == nil {
		return nil
	}
	t, err := l.dial(ctx)
	if err != nil {
		return err
	}
	return l.dispatcher.Attach(t)
}

func (l *link) close() {
	if l.dispatcher != nil {
		_ = l.dispatcher.Close()
	}
}

func newLink(cfg *config.Config, collector *metrics.Collector, logger logging.Logger) (*link, error) {
	if cfg.Bridge.Transport == config.TransportLocal {
		ed, err := newEditor(cfg, logger)
		if err != nil {
			return nil, err
		}
		return &link{caller: editor.NewLocalCaller(ed)}, nil
	}

	var dial transport.Dialer
	switch cfg.Bridge.Transport {
	case config.TransportTCP:
		dial = transport.TCPDialer(cfg.Bridge.Address, cfg.Bridge.ConnectTimeout, logger)
	case config.TransportNATS:
		opts, err := natsOptions(cfg, logger)
		if err != nil {
			return nil, err
		}
		dial = transport.NATSDialer(opts, logger)
	default:
		return nil, errors.Newf("unsupported bridge transport %q", cfg.Bridge.Transport)
	}

	d := bridge.New(bridge.Options{
		Timeout: cfg.Bridge.RequestTimeout,
		Logger:  logger,
		Metrics: collector,
	})
	b := cfg.Bridge.Backoff
	return &link{
		caller:     d.Caller(),
		dispatcher: d,
		dial:       dial,
		backoff: transport.BackoffConfig{
			InitialDelay: b.InitialDelay,
			Multiplier:   b.Multiplier,
			MaxDelay:     b.MaxDelay,
			Jitter:       b.Jitter,
		},
	}, nil
}

func natsOptions(cfg *config.Config, logger logging.Logger) (transport.NATSOptions, error) {
	storage, err := secret.NewStorage(cfg.Auth.TokenPath, logger)
	if err != nil {
		return transport.NATSOptions{}, err
	}
	token, source, err := secret.Resolve(storage, cfg.NATS.Token)
	if err != nil {
		return transport.NATSOptions{}, err
	}
	logger.Debug("Resolved broker token.", "source", string(source))
	return transport.NATSOptions{
		URL:           cfg.NATS.URL,
		Name:          cfg.Server.Name,
		Token:         token,
		SubjectPrefix: cfg.NATS.SubjectPrefix,
		Timeout:       cfg.Bridge.ConnectTimeout,
	}, nil
}

func newEditor(cfg *config.Config, logger logging.Logger) (*editor.Editor, error) {
	provider, err := project.NewFileProvider(cfg.Project.Root, cfg.Project.ScriptsDir, logger)
	if err != nil {
		return nil, err
	}
	return editor.New(editor.Options{
		Provider:          provider,
		Logger:            logger,
		RequestsPerSecond: cfg.Editor.RequestsPerSecond,
		Burst:             cfg.Editor.Burst,
		AnalysisWorkers:   cfg.Editor.AnalysisWorkers,
	})
}

// newInvoker builds the sealed call registry over l.
func newInvoker(cfg *config.Config, l *link, collector *metrics.Collector, logger logging.Logger) (*invoker.Invoker, error) {
	reg := registry.New(logger)
	if _, err := handlers.Register(reg, handlers.Deps{
		Caller:         l.caller,
		Metrics:        collector,
		Logger:         logger,
		EditorVersions: cfg.Bridge.EditorVersions,
	}); err != nil {
		return nil, err
	}
	reg.Seal()
	return invoker.New(reg, collector, logger), nil
}
