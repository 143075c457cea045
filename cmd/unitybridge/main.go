// Command unitybridge exposes a game editor's project operations to AI agents
// over the Model Context Protocol, and can also play the editor side of the
// link for headless use.
package main

// file: cmd/unitybridge/main.go

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dkoosis/unitybridge/internal/config"
	"github.com/dkoosis/unitybridge/internal/logging"
)

// Version information, set during build via ldflags.
var (
	Version    = "0.1.0-dev"
	commitHash = "unknown"
	buildDate  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %+v", err))
		os.Exit(1)
	}
}

func newApp() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "unitybridge",
		Short: "MCP bridge between AI agents and a game editor",
		Example: `  Serve MCP over stdio, bridging to an editor on localhost:
  $ unitybridge serve

  Serve a project headlessly as the editor side of the link:
  $ unitybridge editor --project ~/Games/MyGame

  Invoke a call directly:
  $ unitybridge call get_scripts '{"searchPattern":"Player"}'`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or TOML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Set the logging level [debug, info, warn, error]")
	rootCmd.PersistentFlags().String("env-file", ".env", "Dotenv file loaded before the environment is read")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return loadApp(cmd)
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newEditorCommand(),
		newCallCommand(),
		newCallsCommand(),
		newTokenCommand(),
		newSetupCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

// annotationNoConfig marks commands that run before a configuration file
// exists.
const annotationNoConfig = "unitybridge/no-config"

type appKey struct{}

// app is the state every command shares once the root flags are processed.
type app struct {
	cfg        *config.Config
	configPath string
	logger     logging.Logger
}

func loadApp(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	envFile, _ := flags.GetString("env-file")
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
	}

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		if p := defaultConfigPath(); fileExists(p) {
			configPath = p
		}
	}
	cfg := config.DefaultConfig()
	if cmd.Annotations[annotationNoConfig] == "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	// Stdout carries the MCP channel, so logs always go to stderr.
	logging.InitLogging(logging.ParseLevel(cfg.Log.Level), os.Stderr)

	a := &app{cfg: cfg, configPath: configPath, logger: logging.GetLogger("unitybridge")}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appKey{}, a))
	return nil
}

func appFrom(cmd *cobra.Command) *app {
	if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
		return a
	}
	return &app{cfg: config.DefaultConfig(), logger: logging.GetNoopLogger()}
}
