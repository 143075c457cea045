package main

// file: cmd/unitybridge/main_test.go

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/dkoosis/unitybridge/internal/config"
	"github.com/dkoosis/unitybridge/internal/editor"
	"github.com/dkoosis/unitybridge/internal/project"
	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/secret"
	"github.com/dkoosis/unitybridge/internal/transport"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// runApp executes the root command with an isolated home directory.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	cmd := newApp()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--env-file", "", "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(testCtx(t))
	return out.String(), err
}

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(secret.EnvToken, "")
	return home
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "Arena")
	files := map[string]string{
		"Assets/Player/PlayerController.cs": "public class PlayerController {\n  public void Move() {}\n}\n",
		"Assets/Enemy/EnemyAI.cs":           "public class EnemyAI {}\n",
	}
	for rel, body := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	return root
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unitybridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCalls_ListsEveryCall(t *testing.T) {
	isolateHome(t)
	out, err := runApp(t, "calls", "--json")
	require.NoError(t, err)

	var infos []callInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
		assert.NotEmpty(t, info.InputSchema)
	}
	assert.Equal(t, []string{"get_scripts", "analyze_cs_files", "get_editor_info", "get_bridge_status"}, names)
	assert.Equal(t, "unity://scripts", infos[0].ResourceURI)
	assert.False(t, infos[1].Tool)

	table, err := runApp(t, "calls")
	require.NoError(t, err)
	assert.Contains(t, table, "NAME")
	assert.Contains(t, table, "unity://analyze-cs-files")
}

func TestCall_LocalEditor(t *testing.T) {
	isolateHome(t)
	root := writeProject(t)
	cfgPath := writeConfig(t, fmt.Sprintf("bridge:\n  transport: local\nproject:\n  root: %q\n", root))

	out, err := runApp(t, "--config", cfgPath, "call", "get_scripts", `{"searchPattern":"Player"}`)
	require.NoError(t, err)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Scripts retrieved successfully", resp.Message)
	var scripts []map[string]interface{}
	found, err := resp.Field("scripts", &scripts)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, scripts, 1)
	assert.Equal(t, "PlayerController", scripts[0]["name"])
	assert.NotContains(t, scripts[0], "content")
}

func TestCall_ValidationFailurePrintsEnvelope(t *testing.T) {
	isolateHome(t)
	cfgPath := writeConfig(t, fmt.Sprintf("bridge:\n  transport: local\nproject:\n  root: %q\n", writeProject(t)))

	out, err := runApp(t, "--config", cfgPath, "call", "get_scripts", `{"maxFileSizeBytes":-1}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(protocol.KindValidation))

	var resp protocol.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.KindValidation, resp.Error.Type)
}

func TestCall_UnknownName(t *testing.T) {
	isolateHome(t)
	_, err := runApp(t, "call", "delete_everything")
	require.Error(t, err)
	assert.Equal(t, protocol.KindUnknownCall, protocol.KindOf(err))
}

func TestCall_OverTCP(t *testing.T) {
	isolateHome(t)
	ctx := testCtx(t)
	root := writeProject(t)

	provider, err := project.NewFileProvider(root, "Assets", nil)
	require.NoError(t, err)
	ed, err := editor.New(editor.Options{Provider: provider})
	require.NoError(t, err)
	ln, err := transport.ListenTCP(ctx, "127.0.0.1:0", nil)
	require.NoError(t, err)
	serveCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ed.Serve(serveCtx, ln)
	}()
	t.Cleanup(func() {
		stop()
		<-done
	})

	cfgPath := writeConfig(t, fmt.Sprintf("bridge:\n  transport: tcp\n  address: %q\n", ln.Addr()))
	out, err := runApp(t, "--config", cfgPath, "call", "get_editor_info")
	require.NoError(t, err)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Editor information retrieved", resp.Message)
	var name string
	found, err := resp.Field("projectName", &name)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Arena", name)
}

func TestCall_BridgeStatusNeedsNoEditor(t *testing.T) {
	isolateHome(t)
	// Nothing listens here; the status call is answered in-process.
	cfgPath := writeConfig(t, "bridge:\n  transport: tcp\n  address: \"127.0.0.1:1\"\n")
	out, err := runApp(t, "--config", cfgPath, "call", "get_bridge_status")
	require.NoError(t, err)
	assert.Contains(t, out, "Editor not connected")
}

func TestToken_SetShowClear(t *testing.T) {
	isolateHome(t)
	keyring.MockInit()

	out, err := runApp(t, "token", "set", "bridge-token-1234")
	require.NoError(t, err)
	assert.Contains(t, out, "Token saved")

	out, err = runApp(t, "token", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Source:  storage")
	assert.Contains(t, out, "*************1234")
	assert.NotContains(t, out, "bridge-token-1234")

	t.Setenv(secret.EnvToken, "from-env-token")
	out, err = runApp(t, "token", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Source:  env")

	t.Setenv(secret.EnvToken, "")
	_, err = runApp(t, "token", "clear")
	require.NoError(t, err)
	out, err = runApp(t, "token", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No token configured.")
}

func TestPromptForToken(t *testing.T) {
	tok, err := promptForToken(strings.NewReader("  typed-token \n"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "typed-token", tok)

	_, err = promptForToken(strings.NewReader("\n"), io.Discard)
	assert.Error(t, err)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****", maskToken("abcd"))
	assert.Equal(t, "******7890", maskToken("1234567890"))
}

func TestSetup_WritesConfigAndKeepsOtherServers(t *testing.T) {
	home := isolateHome(t)
	cfgPath := filepath.Join(home, "cfg", "unitybridge.yaml")
	desktopPath := filepath.Join(home, "Claude", "claude_desktop_config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(desktopPath), 0o700))
	require.NoError(t, os.WriteFile(desktopPath,
		[]byte(`{"theme":"dark","mcpServers":{"other":{"command":"/bin/other","args":[]}}}`), 0o600))

	out, err := runApp(t, "--config", cfgPath, "setup", "--project", "/work/Arena", "--desktop-config", desktopPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")
	assert.Contains(t, out, "Setup complete.")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "/work/Arena", cfg.Project.Root)
	assert.Equal(t, 10*time.Second, cfg.Bridge.RequestTimeout)

	data, err := os.ReadFile(desktopPath)
	require.NoError(t, err)
	var doc struct {
		Theme      string                         `json:"theme"`
		MCPServers map[string]DesktopServerConfig `json:"mcpServers"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "dark", doc.Theme)
	assert.Equal(t, "/bin/other", doc.MCPServers["other"].Command)
	assert.Equal(t, []string{"serve", "--config", cfgPath}, doc.MCPServers[desktopServerName].Args)

	// A second run keeps the existing configuration.
	out, err = runApp(t, "--config", cfgPath, "setup", "--skip-desktop")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestRegisterDesktopServer_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	assert.Error(t, registerDesktopServer(path, "/bin/unitybridge", "/cfg.yaml"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestVersion(t *testing.T) {
	isolateHome(t)
	out, err := runApp(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "unitybridge "+Version)
	assert.Contains(t, out, "protocol: "+protocol.ProtocolVersion)
}
