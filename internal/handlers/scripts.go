package handlers

// file: internal/handlers/scripts.go

import (
	"context"

	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/registry"
	"github.com/dkoosis/unitybridge/internal/schema"
)

const (
	// GetScripts lists the project's C# scripts.
	GetScripts = "get_scripts"
	// ScriptsURI is the resource get_scripts is published under.
	ScriptsURI = "unity://scripts"
	// DefaultMaxFileSizeBytes caps returned script content.
	DefaultMaxFileSizeBytes = 50000
)

// ScriptsParams declares the get_scripts parameters.
var ScriptsParams = schema.Definition{Fields: []schema.Field{
	{
		Name:        "searchPattern",
		Type:        schema.TypeString,
		Nullable:    true,
		Description: "Optional pattern to filter scripts (e.g., *Player*.cs)",
	},
	{
		Name:        "includeContent",
		Type:        schema.TypeBoolean,
		Default:     false,
		Description: "Whether to include the actual script content or just metadata",
	},
	{
		Name:        "maxFileSizeBytes",
		Type:        schema.TypeInteger,
		Default:     DefaultMaxFileSizeBytes,
		Minimum:     schema.Min(0),
		Description: "Size limit for script content returned (in bytes)",
	},
}}

// Script is one entry of the get_scripts result.
type Script struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Size    int64   `json:"size"`
	Content *string `json:"content,omitempty"`
}

func scriptsDescriptor(a *Adapters) registry.CallDescriptor {
	return registry.CallDescriptor{
		Name:        GetScripts,
		Description: "Retrieves and searches C# script files in the Unity project",
		Params:      ScriptsParams,
		Handler:     a.GetScripts,
		Tool:        true,
		Resource: &registry.Resource{
			URI:      ScriptsURI,
			Name:     GetScripts,
			MIMEType: "application/json",
		},
	}
}

// GetScripts lists scripts through the editor. Content is kept only when it
// was requested and the file fits within maxFileSizeBytes, whatever the
// editor sent.
func (a *Adapters) GetScripts(ctx context.Context, params schema.Params) (*protocol.Response, error) {
	resp, err := a.call(ctx, GetScripts, params, "retrieve scripts")
	if err != nil {
		return nil, err
	}

	var scripts []Script
	found, err := resp.Field("scripts", &scripts)
	if err != nil {
		return nil, malformed(GetScripts, "scripts", err)
	}
	if !found {
		return nil, malformed(GetScripts, "scripts", nil)
	}
	if scripts == nil {
		scripts = []Script{}
	}

	gateContent(scripts, params.Bool("includeContent"), params.Int("maxFileSizeBytes"))
	return protocol.NewSuccess("Scripts retrieved successfully", map[string]interface{}{"scripts": scripts})
}

func gateContent(scripts []Script, includeContent bool, maxSize int64) {
	for i := range scripts {
		if !includeContent || scripts[i].Size > maxSize {
			scripts[i].Content = nil
		}
	}
}
