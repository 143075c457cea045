package handlers

// file: internal/handlers/analyze.go

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/registry"
	"github.com/dkoosis/unitybridge/internal/schema"
)

const (
	// AnalyzeCSFiles extracts classes, methods and properties from scripts.
	AnalyzeCSFiles = "analyze_cs_files"
	// AnalyzeURI is the resource analyze_cs_files is published under.
	AnalyzeURI = "unity://analyze-cs-files"
)

// AnalyzeParams declares the analyze_cs_files parameters.
var AnalyzeParams = schema.Definition{Fields: []schema.Field{
	{
		Name:        "searchPattern",
		Type:        schema.TypeString,
		Nullable:    true,
		Description: "Optional pattern limiting which scripts are analyzed",
	},
}}

// FileAnalysis is one analyze_cs_files entry. Error is set when the file
// could not be read, and the entry is then encoded as {filePath, error}.
// Otherwise the three lists are always present, as [] when nothing was
// found.
type FileAnalysis struct {
	FilePath   string   `json:"filePath"`
	Classes    []string `json:"classes"`
	Methods    []string `json:"methods"`
	Properties []string `json:"properties"`
	Error      string   `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (f FileAnalysis) MarshalJSON() ([]byte, error) {
	if f.Error != "" {
		return json.Marshal(struct {
			FilePath string `json:"filePath"`
			Error    string `json:"error"`
		}{f.FilePath, f.Error})
	}
	type plain FileAnalysis
	return json.Marshal(plain(f))
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func analyzeDescriptor(a *Adapters) registry.CallDescriptor {
	return registry.CallDescriptor{
		Name:        AnalyzeCSFiles,
		Description: "Analyzes .cs files in the Unity project and extracts class, method, and property information.",
		Params:      AnalyzeParams,
		Handler:     a.AnalyzeCSFiles,
		Resource: &registry.Resource{
			URI:      AnalyzeURI,
			Name:     AnalyzeCSFiles,
			MIMEType: "application/json",
		},
	}
}

// AnalyzeCSFiles runs the editor's script analysis.
func (a *Adapters) AnalyzeCSFiles(ctx context.Context, params schema.Params) (*protocol.Response, error) {
	resp, err := a.call(ctx, AnalyzeCSFiles, params, "analyze scripts")
	if err != nil {
		return nil, err
	}

	var files []json.RawMessage
	found, err := resp.Field("files", &files)
	if err != nil || !found {
		return nil, malformed(AnalyzeCSFiles, "files", err)
	}
	out := make([]FileAnalysis, 0, len(files))
	for _, raw := range files {
		var f FileAnalysis
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, malformed(AnalyzeCSFiles, "files", err)
		}
		if f.FilePath == "" {
			return nil, malformed(AnalyzeCSFiles, "files", nil)
		}
		if f.Error == "" {
			f.Classes = orEmpty(f.Classes)
			f.Methods = orEmpty(f.Methods)
			f.Properties = orEmpty(f.Properties)
		}
		out = append(out, f)
	}

	return protocol.NewSuccess(fmt.Sprintf("Analyzed %d .cs files", len(out)),
		map[string]interface{}{"files": out})
}
