package handlers

// file: internal/handlers/handlers_test.go

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkoosis/unitybridge/internal/bridge"
	"github.com/dkoosis/unitybridge/internal/editor"
	"github.com/dkoosis/unitybridge/internal/handlers/mock_handlers"
	"github.com/dkoosis/unitybridge/internal/invoker"
	"github.com/dkoosis/unitybridge/internal/metrics"
	"github.com/dkoosis/unitybridge/internal/project"
	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/registry"
	"github.com/dkoosis/unitybridge/internal/schema"
	"github.com/dkoosis/unitybridge/internal/transport"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func scriptParams(t *testing.T, raw map[string]interface{}) schema.Params {
	t.Helper()
	p, err := schema.MustCompile(GetScripts, ScriptsParams).Normalize(raw)
	require.NoError(t, err)
	return p
}

func success(t *testing.T, fields map[string]interface{}) *protocol.Response {
	t.Helper()
	resp, err := protocol.NewSuccess("ok", fields)
	require.NoError(t, err)
	return resp
}

func newAdapters(t *testing.T, caller Caller) *Adapters {
	t.Helper()
	a, err := New(Deps{Caller: caller})
	require.NoError(t, err)
	return a
}

func TestGetScripts_ForwardsNormalizedParams(t *testing.T) {
	mc := mock_handlers.NewMockCaller(gomock.NewController(t))
	mc.EXPECT().
		Call(gomock.Any(), GetScripts, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, p schema.Params) (*protocol.Response, error) {
			data, err := json.Marshal(p)
			require.NoError(t, err)
			assert.JSONEq(t, `{"searchPattern":null,"includeContent":false,"maxFileSizeBytes":50000}`, string(data))
			return success(t, map[string]interface{}{"scripts": []Script{}}), nil
		})

	resp, err := newAdapters(t, mc).GetScripts(testCtx(t), scriptParams(t, nil))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Scripts retrieved successfully", resp.Message)

	raw, ok := resp.RawField("scripts")
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestGetScripts_ReappliesContentGate(t *testing.T) {
	small, big := "class A {}", strings.Repeat("x", 10)
	mc := mock_handlers.NewMockCaller(gomock.NewController(t))
	mc.EXPECT().Call(gomock.Any(), GetScripts, gomock.Any()).Return(success(t, map[string]interface{}{
		"scripts": []Script{
			{Name: "A", Path: "Assets/A.cs", Size: 100, Content: &small},
			{Name: "B", Path: "Assets/B.cs", Size: 60000, Content: &big},
		},
	}), nil).Times(2)
	a := newAdapters(t, mc)

	resp, err := a.GetScripts(testCtx(t), scriptParams(t, map[string]interface{}{"includeContent": true}))
	require.NoError(t, err)
	var scripts []Script
	_, err = resp.Field("scripts", &scripts)
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	require.NotNil(t, scripts[0].Content)
	assert.Equal(t, small, *scripts[0].Content)
	assert.Nil(t, scripts[1].Content)

	// Not requested: no content at all, not even an empty field.
	resp, err = a.GetScripts(testCtx(t), scriptParams(t, nil))
	require.NoError(t, err)
	raw, _ := resp.RawField("scripts")
	assert.NotContains(t, string(raw), "content")
}

func TestGetScripts_FailureEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		resp    *protocol.Response
		message string
	}{
		{
			name:    "editor message",
			resp:    protocol.NewFailure(protocol.KindCallExecution, "Assets folder missing", "io"),
			message: "Failed to retrieve scripts: Assets folder missing",
		},
		{
			name:    "empty message",
			resp:    &protocol.Response{Success: false},
			message: "Failed to retrieve scripts: Unknown error",
		},
		{
			name:    "decoder default message",
			resp:    &protocol.Response{Success: false, Message: protocol.DefaultFailureMessage},
			message: "Failed to retrieve scripts: Unknown error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := mock_handlers.NewMockCaller(gomock.NewController(t))
			mc.EXPECT().Call(gomock.Any(), GetScripts, gomock.Any()).Return(tt.resp, nil)

			_, err := newAdapters(t, mc).GetScripts(testCtx(t), scriptParams(t, nil))
			require.Error(t, err)
			assert.Equal(t, protocol.KindCallExecution, protocol.KindOf(err))
			assert.Equal(t, tt.message, protocol.Detail(err))
		})
	}
}

func TestGetScripts_CallerErrorsKeepTheirKind(t *testing.T) {
	mc := mock_handlers.NewMockCaller(gomock.NewController(t))
	a := newAdapters(t, mc)

	mc.EXPECT().Call(gomock.Any(), GetScripts, gomock.Any()).
		Return(nil, protocol.NewTimeoutError(GetScripts, time.Second))
	_, err := a.GetScripts(testCtx(t), scriptParams(t, nil))
	assert.Equal(t, protocol.KindTimeout, protocol.KindOf(err))

	mc.EXPECT().Call(gomock.Any(), GetScripts, gomock.Any()).
		Return(nil, errors.New("socket exploded"))
	_, err = a.GetScripts(testCtx(t), scriptParams(t, nil))
	assert.Equal(t, protocol.KindTransport, protocol.KindOf(err))
}

func TestGetScripts_MalformedResult(t *testing.T) {
	mc := mock_handlers.NewMockCaller(gomock.NewController(t))
	a := newAdapters(t, mc)

	mc.EXPECT().Call(gomock.Any(), GetScripts, gomock.Any()).
		Return(success(t, map[string]interface{}{"scripts": "not a list"}), nil)
	_, err := a.GetScripts(testCtx(t), scriptParams(t, nil))
	assert.Equal(t, protocol.KindTransport, protocol.KindOf(err))

	mc.EXPECT().Call(gomock.Any(), GetScripts, gomock.Any()).Return(success(t, nil), nil)
	_, err = a.GetScripts(testCtx(t), scriptParams(t, nil))
	assert.Equal(t, protocol.KindTransport, protocol.KindOf(err))
}

func TestAnalyzeCSFiles(t *testing.T) {
	mc := mock_handlers.NewMockCaller(gomock.NewController(t))
	mc.EXPECT().Call(gomock.Any(), AnalyzeCSFiles, gomock.Any()).Return(success(t, map[string]interface{}{
		"files": []map[string]interface{}{
			{"filePath": "Assets/A.cs", "classes": []string{"class A"}, "methods": []string{}, "properties": []string{}},
			{"filePath": "Assets/B.cs", "error": "permission denied"},
		},
	}), nil)

	params, err := schema.MustCompile(AnalyzeCSFiles, AnalyzeParams).Normalize(nil)
	require.NoError(t, err)
	resp, err := newAdapters(t, mc).AnalyzeCSFiles(testCtx(t), params)
	require.NoError(t, err)
	assert.Equal(t, "Analyzed 2 .cs files", resp.Message)

	var files []FileAnalysis
	_, err = resp.Field("files", &files)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, []string{"class A"}, files[0].Classes)
	assert.Equal(t, "permission denied", files[1].Error)
}

func TestAnalyzeCSFiles_EmptyFileKeepsLists(t *testing.T) {
	mc := mock_handlers.NewMockCaller(gomock.NewController(t))
	mc.EXPECT().Call(gomock.Any(), AnalyzeCSFiles, gomock.Any()).Return(success(t, map[string]interface{}{
		"files": []map[string]interface{}{
			{"filePath": "Assets/Empty.cs", "classes": []string{}, "methods": []string{}, "properties": []string{}},
			{"filePath": "Assets/Bare.cs"},
			{"filePath": "Assets/Locked.cs", "error": "permission denied"},
		},
	}), nil)

	params, err := schema.MustCompile(AnalyzeCSFiles, AnalyzeParams).Normalize(nil)
	require.NoError(t, err)
	resp, err := newAdapters(t, mc).AnalyzeCSFiles(testCtx(t), params)
	require.NoError(t, err)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": true,
		"message": "Analyzed 3 .cs files",
		"files": [
			{"filePath": "Assets/Empty.cs", "classes": [], "methods": [], "properties": []},
			{"filePath": "Assets/Bare.cs", "classes": [], "methods": [], "properties": []},
			{"filePath": "Assets/Locked.cs", "error": "permission denied"}
		]
	}`, string(data))
}

func TestGetEditorInfo_VersionCheck(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		versions string
		wantErr  bool
	}{
		{name: "compatible", version: "1.1.0", wantErr: false},
		{name: "newer major", version: "2.0.0", wantErr: true},
		{name: "not semver", version: "latest", wantErr: true},
		{name: "custom range", version: "1.1.0", versions: ">= 1.2.0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := mock_handlers.NewMockCaller(gomock.NewController(t))
			mc.EXPECT().Call(gomock.Any(), GetEditorInfo, gomock.Any()).Return(success(t, map[string]interface{}{
				"protocolVersion": tt.version,
				"projectName":     "Demo",
			}), nil)
			a, err := New(Deps{Caller: mc, EditorVersions: tt.versions})
			require.NoError(t, err)

			params, err := schema.MustCompile(GetEditorInfo, schema.Definition{}).Normalize(nil)
			require.NoError(t, err)
			resp, err := a.GetEditorInfo(testCtx(t), params)
			if tt.wantErr {
				assert.Equal(t, protocol.KindCallExecution, protocol.KindOf(err))
				return
			}
			require.NoError(t, err)
			var name string
			_, err = resp.Field("projectName", &name)
			require.NoError(t, err)
			assert.Equal(t, "Demo", name)
		})
	}
}

func TestNew_RejectsBadRangeAndMissingCaller(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)

	mc := mock_handlers.NewMockCaller(gomock.NewController(t))
	_, err = New(Deps{Caller: mc, EditorVersions: "not a range!"})
	assert.Error(t, err)
}

func TestGetBridgeStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	status := mock_handlers.NewMockStatusSource(ctrl)
	status.EXPECT().Connected().Return(false)
	status.EXPECT().Pending().Return(3)

	collector := metrics.NewCollector(5)
	collector.RecordStaleResponse()
	a, err := New(Deps{Caller: mock_handlers.NewMockCaller(ctrl), Status: status, Metrics: collector})
	require.NoError(t, err)

	resp, err := a.GetBridgeStatus(testCtx(t), schema.Params{})
	require.NoError(t, err)
	assert.Equal(t, "Editor not connected", resp.Message)

	var pending int
	_, err = resp.Field("pendingCalls", &pending)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)

	var snap metrics.BridgeMetrics
	_, err = resp.Field("metrics", &snap)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.StaleResponses)
}

func TestRegister(t *testing.T) {
	reg := registry.New(nil)
	_, err := Register(reg, Deps{Caller: mock_handlers.NewMockCaller(gomock.NewController(t))})
	require.NoError(t, err)
	assert.Equal(t, []string{GetScripts, AnalyzeCSFiles, GetEditorInfo, GetBridgeStatus}, reg.Names())

	d, err := reg.ResolveURI(ScriptsURI)
	require.NoError(t, err)
	assert.Equal(t, GetScripts, d.Name)
	assert.True(t, d.Tool)

	status, err := reg.Resolve(GetBridgeStatus)
	require.NoError(t, err)
	assert.True(t, status.Local)

	// A second registration of the same calls is rejected.
	_, err = Register(reg, Deps{Caller: mock_handlers.NewMockCaller(gomock.NewController(t))})
	assert.True(t, protocol.IsKind(err, protocol.KindDuplicateName))
}

func writeProject(t *testing.T, files map[string]int) string {
	t.Helper()
	root := t.TempDir()
	for rel, size := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(strings.Repeat("/", size)), 0o644))
	}
	return root
}

// The whole pipeline: registry, validator, adapter, dispatcher, transport,
// editor, and back.
func TestGetScripts_EndToEnd(t *testing.T) {
	ctx := testCtx(t)
	root := writeProject(t, map[string]int{
		"Assets/Player/PlayerController.cs": 1200,
		"Assets/Player/PlayerInput.cs":      800,
		"Assets/Enemy/EnemyAI.cs":           300,
	})
	provider, err := project.NewFileProvider(root, "", nil)
	require.NoError(t, err)
	ed, err := editor.New(editor.Options{Provider: provider})
	require.NoError(t, err)

	pair := transport.NewInMemoryTransportPair()
	defer pair.Close()
	serveCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = ed.ServeTransport(serveCtx, pair.ServerTransport) }()

	collector := metrics.NewCollector(5)
	d := bridge.New(bridge.Options{Timeout: 2 * time.Second, Metrics: collector})
	defer d.Close()
	require.NoError(t, d.Attach(pair.ClientTransport))

	reg := registry.New(nil)
	_, err = Register(reg, Deps{Caller: d.Caller(), Metrics: collector})
	require.NoError(t, err)
	reg.Seal()

	resp, err := invoker.New(reg, collector, nil).Invoke(ctx, GetScripts, map[string]interface{}{"searchPattern": "Player"})
	require.NoError(t, err)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": true,
		"message": "Scripts retrieved successfully",
		"scripts": [
			{"name": "PlayerController", "path": "Assets/Player/PlayerController.cs", "size": 1200},
			{"name": "PlayerInput", "path": "Assets/Player/PlayerInput.cs", "size": 800}
		]
	}`, string(data))
	assert.Equal(t, 0, d.Pending())
	assert.Equal(t, 1, collector.Snapshot().TotalCalls)
}
