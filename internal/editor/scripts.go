package editor

// file: internal/editor/scripts.go

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/dkoosis/unitybridge/internal/project"
	"github.com/dkoosis/unitybridge/internal/protocol"
)

// Script is one get_scripts entry. Content is nil unless it was requested
// and the file is within the size limit.
type Script struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Size    int64   `json:"size"`
	Content *string `json:"content,omitempty"`
}

type scriptsParams struct {
	SearchPattern    *string `json:"searchPattern"`
	IncludeContent   *bool   `json:"includeContent"`
	MaxFileSizeBytes *int64  `json:"maxFileSizeBytes"`
}

func (e *Editor) getScripts(ctx context.Context, raw json.RawMessage) (*protocol.Response, error) {
	var params scriptsParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	pattern := ""
	if params.SearchPattern != nil {
		pattern = *params.SearchPattern
	}
	includeContent := params.IncludeContent != nil && *params.IncludeContent
	maxSize := int64(DefaultMaxFileSizeBytes)
	if params.MaxFileSizeBytes != nil {
		maxSize = *params.MaxFileSizeBytes
	}

	files, err := e.provider.ListScripts(ctx)
	if err != nil {
		return nil, err
	}

	scripts := make([]Script, 0, len(files))
	var contentBytes int64
	for _, f := range files {
		if !project.MatchPattern(pattern, f.Path) {
			continue
		}
		s := Script{Name: f.Name, Path: f.Path, Size: f.Size}
		if includeContent && f.Size <= maxSize {
			text, err := e.provider.ReadScript(ctx, f.Path)
			if err != nil {
				return nil, err
			}
			s.Content = &text
			contentBytes += int64(len(text))
		}
		scripts = append(scripts, s)
	}

	e.logger.Debug("Listed scripts.", "pattern", pattern, "count", len(scripts),
		"content", humanize.Bytes(uint64(contentBytes)))
	return protocol.NewSuccess(fmt.Sprintf("Retrieved %d C# script files", len(scripts)),
		map[string]interface{}{"scripts": scripts})
}
