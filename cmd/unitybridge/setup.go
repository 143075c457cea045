package main

// file: cmd/unitybridge/setup.go

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dkoosis/unitybridge/internal/config"
)

// desktopServerName is the key the bridge is registered under in the
// desktop client's configuration.
const desktopServerName = "unitybridge"

// DesktopServerConfig is one entry of the desktop client's mcpServers map.
type DesktopServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

func newSetupCommand() *cobra.Command {
	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a default configuration and register the bridge with Claude Desktop",
		Long: `Write a default configuration file (unless one exists) and add the bridge to
Claude Desktop's mcpServers. Other servers in that file are left untouched.`,
		Args:        cobra.NoArgs,
		RunE:        setupAction,
		Annotations: map[string]string{annotationNoConfig: "true"},
	}
	setupCmd.Flags().String("project", "", "Project root written into the new configuration")
	setupCmd.Flags().String("desktop-config", "", "Path to claude_desktop_config.json (default: per-OS location)")
	setupCmd.Flags().Bool("skip-desktop", false, "Only write the bridge configuration")
	return setupCmd
}

func setupAction(cmd *cobra.Command, _ []string) error {
	a := appFrom(cmd)
	out := cmd.OutOrStdout()

	exePath, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "failed to get executable path")
	}
	if exePath, err = filepath.Abs(exePath); err != nil {
		return errors.Wrap(err, "failed to get absolute executable path")
	}

	configPath := a.configPath
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	if configPath, err = config.ExpandPath(configPath); err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	if root, _ := cmd.Flags().GetString("project"); root != "" {
		if cfg.Project.Root, err = config.ExpandPath(root); err != nil {
			return err
		}
	}
	if err := writeDefaultConfig(out, configPath, cfg); err != nil {
		return errors.Wrap(err, "failed to create default configuration")
	}

	if skip, _ := cmd.Flags().GetBool("skip-desktop"); skip {
		return nil
	}
	desktopPath, _ := cmd.Flags().GetString("desktop-config")
	if desktopPath == "" {
		desktopPath = desktopConfigPath()
	}
	if err := registerDesktopServer(desktopPath, exePath, configPath); err != nil {
		fmt.Fprintln(out, color.YellowString("Warning: failed to configure Claude Desktop automatically: %v", err))
		printManualSetupInstructions(out, desktopPath, exePath, configPath)
		return nil
	}
	fmt.Fprintf(out, "Registered %q in %s\n", desktopServerName, desktopPath)
	fmt.Fprintln(out, color.GreenString("Setup complete."))
	fmt.Fprintln(out, "Start the editor plugin (or 'unitybridge editor'), then restart Claude Desktop.")
	return nil
}

// defaultConfigPath is where setup writes, and where commands look when
// --config is not given.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "unitybridge.yaml"
	}
	return filepath.Join(home, ".config", "unitybridge", "unitybridge.yaml")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeDefaultConfig writes cfg as YAML to path. An existing file is kept.
func writeDefaultConfig(out io.Writer, path string, cfg *config.Config) error {
	if fileExists(path) {
		fmt.Fprintf(out, "Configuration file already exists at %s\n", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create configuration directory")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to encode configuration")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write configuration file")
	}
	fmt.Fprintf(out, "Created default configuration at %s\n", path)
	return nil
}

// registerDesktopServer adds or replaces the bridge entry in the desktop
// client's configuration, keeping every other key. An unparseable file is
// an error rather than being overwritten.
func registerDesktopServer(desktopPath, exePath, configPath string) error {
	doc := map[string]json.RawMessage{}
	// #nosec G304 -- per-OS location or an explicit flag.
	data, err := os.ReadFile(desktopPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &doc); err != nil {
			return errors.Wrapf(err, "failed to parse %s", desktopPath)
		}
	case !os.IsNotExist(err):
		return errors.Wrap(err, "failed to read Claude Desktop configuration")
	}

	servers := map[string]json.RawMessage{}
	if raw, ok := doc["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &servers); err != nil {
			return errors.Wrap(err, "mcpServers is not an object")
		}
	}
	entry, err := json.Marshal(DesktopServerConfig{
		Command: exePath,
		Args:    []string{"serve", "--config", configPath},
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode server entry")
	}
	servers[desktopServerName] = entry
	if doc["mcpServers"], err = json.Marshal(servers); err != nil {
		return errors.Wrap(err, "failed to encode mcpServers")
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal Claude Desktop configuration")
	}
	if err := os.MkdirAll(filepath.Dir(desktopPath), 0o700); err != nil {
		return errors.Wrap(err, "failed to create Claude Desktop configuration directory")
	}
	if err := os.WriteFile(desktopPath, out, 0o600); err != nil {
		return errors.Wrap(err, "failed to write Claude Desktop configuration")
	}
	return nil
}

// desktopConfigPath returns the per-OS location of claude_desktop_config.json.
func desktopConfigPath() string {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "Claude")
	default:
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config", "Claude")
	}
	return filepath.Join(dir, "claude_desktop_config.json")
}

func printManualSetupInstructions(out io.Writer, desktopPath, exePath, configPath string) {
	entry, _ := json.MarshalIndent(map[string]DesktopServerConfig{
		desktopServerName: {Command: exePath, Args: []string{"serve", "--config", configPath}},
	}, "    ", "  ")
	fmt.Fprintln(out, "\n==== Manual Claude Desktop Configuration ====")
	fmt.Fprintf(out, "1. Create or edit the file at: %s\n", desktopPath)
	fmt.Fprintf(out, "2. Add this under \"mcpServers\":\n    %s\n", entry)
	fmt.Fprintln(out, "3. Restart Claude Desktop to apply the changes.")
}
