package handlers

// file: internal/handlers/editor_info.go

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/registry"
	"github.com/dkoosis/unitybridge/internal/schema"
)

const (
	// GetEditorInfo reports the editor's project and protocol version.
	GetEditorInfo = "get_editor_info"
	// DefaultEditorVersions accepts any 1.x editor.
	DefaultEditorVersions = "^1.0.0"
)

func parseConstraint(rangeStr string) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(rangeStr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid editor version range '%s'", rangeStr)
	}
	return c, nil
}

func editorInfoDescriptor(a *Adapters) registry.CallDescriptor {
	return registry.CallDescriptor{
		Name:        GetEditorInfo,
		Description: "Reports the connected editor's project and bridge protocol version",
		Handler:     a.GetEditorInfo,
		Tool:        true,
	}
}

// GetEditorInfo asks the editor who it is and rejects protocol versions
// outside the accepted range.
func (a *Adapters) GetEditorInfo(ctx context.Context, params schema.Params) (*protocol.Response, error) {
	resp, err := a.call(ctx, GetEditorInfo, params, "retrieve editor information")
	if err != nil {
		return nil, err
	}

	var raw string
	if found, err := resp.Field("protocolVersion", &raw); err != nil || !found {
		return nil, malformed(GetEditorInfo, "protocolVersion", err)
	}
	version, err := semver.NewVersion(raw)
	if err != nil {
		return nil, protocol.NewCallExecutionError(GetEditorInfo,
			fmt.Sprintf("Editor reported an invalid protocol version '%s'", raw))
	}
	constraint, err := parseConstraint(a.versions)
	if err != nil {
		return nil, protocol.NewError(protocol.KindInternal, "bad editor version range", err)
	}
	if ok, reasons := constraint.Validate(version); !ok {
		detail := ""
		if len(reasons) > 0 {
			detail = ": " + reasons[0].Error()
		}
		return nil, protocol.NewCallExecutionError(GetEditorInfo,
			fmt.Sprintf("Editor protocol version %s is not supported (want %s)%s", version, a.versions, detail)).
			WithContext("protocolVersion", version.String())
	}

	out := &protocol.Response{Success: true, Message: "Editor information retrieved"}
	for _, name := range resp.FieldNames() {
		raw, _ := resp.RawField(name)
		if err := out.SetField(name, raw); err != nil {
			return nil, protocol.NewError(protocol.KindInternal, "failed to copy editor info", err)
		}
	}
	if err := out.SetField("protocolVersion", version.String()); err != nil {
		return nil, protocol.NewError(protocol.KindInternal, "failed to copy editor info", err)
	}
	return out, nil
}
