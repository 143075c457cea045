package server

// file: internal/server/server_test.go

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/unitybridge/internal/editor"
	"github.com/dkoosis/unitybridge/internal/handlers"
	"github.com/dkoosis/unitybridge/internal/invoker"
	"github.com/dkoosis/unitybridge/internal/project"
	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/registry"
	"github.com/dkoosis/unitybridge/internal/schema"
)

func newInvoker(t *testing.T) *invoker.Invoker {
	t.Helper()
	root := t.TempDir()
	for rel, content := range map[string]string{
		"Assets/Player/PlayerController.cs": "public class PlayerController {\n    void Update() {}\n}\n",
		"Assets/UI/Menu.cs":                 "class Menu {}\n",
	} {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	provider, err := project.NewFileProvider(root, "", nil)
	require.NoError(t, err)
	ed, err := editor.New(editor.Options{Provider: provider})
	require.NoError(t, err)

	reg := registry.New(nil)
	_, err = handlers.Register(reg, handlers.Deps{Caller: editor.NewLocalCaller(ed)})
	require.NoError(t, err)
	reg.Seal()
	return invoker.New(reg, nil, nil)
}

func connect(t *testing.T) (*Server, *mcp.ClientSession) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	srv, err := New(newInvoker(t), Options{Name: "unitybridge-test", Version: "v0.0.1"})
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return srv, cs
}

func envelopeOf(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &env))
	return env
}

func TestServer_PublishesRegistry(t *testing.T) {
	srv, cs := connect(t)
	ctx := context.Background()

	assert.Equal(t, []string{handlers.GetScripts, handlers.GetEditorInfo, handlers.GetBridgeStatus}, srv.Tools())
	assert.Equal(t, []string{handlers.ScriptsURI, handlers.AnalyzeURI}, srv.Resources())

	tools, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	byName := map[string]*mcp.Tool{}
	for _, tool := range tools.Tools {
		byName[tool.Name] = tool
	}
	require.Contains(t, byName, handlers.GetScripts)
	assert.Equal(t, "Retrieves and searches C# script files in the Unity project", byName[handlers.GetScripts].Description)

	schemaJSON, err := json.Marshal(byName[handlers.GetScripts].InputSchema)
	require.NoError(t, err)
	assert.Contains(t, string(schemaJSON), `"maxFileSizeBytes"`)
	assert.Contains(t, string(schemaJSON), `"object"`)

	templates, err := cs.ListResourceTemplates(ctx, &mcp.ListResourceTemplatesParams{})
	require.NoError(t, err)
	var uris []string
	for _, tmpl := range templates.ResourceTemplates {
		uris = append(uris, tmpl.URITemplate)
	}
	assert.Contains(t, uris, "unity://scripts{?searchPattern,includeContent,maxFileSizeBytes}")
}

func TestServer_CallTool(t *testing.T) {
	_, cs := connect(t)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      handlers.GetScripts,
		Arguments: map[string]interface{}{"searchPattern": "Player"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	env := envelopeOf(t, res)
	assert.Equal(t, true, env["success"])
	scripts, ok := env["scripts"].([]interface{})
	require.True(t, ok)
	require.Len(t, scripts, 1)
	first := scripts[0].(map[string]interface{})
	assert.Equal(t, "Assets/Player/PlayerController.cs", first["path"])
	assert.NotContains(t, first, "content")
}

func TestServer_CallToolFailureCarriesTypeTag(t *testing.T) {
	_, cs := connect(t)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      handlers.GetScripts,
		Arguments: map[string]interface{}{"maxFileSizeBytes": -1},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	env := envelopeOf(t, res)
	assert.Equal(t, false, env["success"])
	detail := env["error"].(map[string]interface{})
	assert.Equal(t, string(protocol.KindValidation), detail["type"])
	assert.Contains(t, detail["detail"], "maxFileSizeBytes")
}

func TestServer_ReadResource(t *testing.T) {
	_, cs := connect(t)

	res, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: handlers.ScriptsURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &env))
	assert.Equal(t, true, env["success"])
	assert.Len(t, env["scripts"], 2)

	res, err = cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: handlers.AnalyzeURI})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &env))
	assert.Equal(t, "Analyzed 2 .cs files", env["message"])
}

func TestQueryParams(t *testing.T) {
	got, err := queryParams("unity://scripts?searchPattern=Player&includeContent=true&maxFileSizeBytes=100&extra=1",
		handlers.ScriptsParams)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"searchPattern":    "Player",
		"includeContent":   true,
		"maxFileSizeBytes": int64(100),
	}, got)

	got, err = queryParams("unity://scripts?maxFileSizeBytes=lots", handlers.ScriptsParams)
	require.NoError(t, err)
	assert.Equal(t, "lots", got["maxFileSizeBytes"])

	_, err = schema.MustCompile(handlers.GetScripts, handlers.ScriptsParams).Normalize(got)
	assert.True(t, protocol.IsKind(err, protocol.KindValidation))
}

func TestURITemplate(t *testing.T) {
	assert.Equal(t, "", uriTemplate("unity://x", schema.Definition{}))
	assert.Equal(t, "unity://analyze-cs-files{?searchPattern}", uriTemplate("unity://analyze-cs-files", handlers.AnalyzeParams))
}

func TestNew_RequiresInvoker(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}
