package server

// file: internal/server/resources.go

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/registry"
	"github.com/dkoosis/unitybridge/internal/schema"
)

func (s *Server) addResource(desc *registry.CallDescriptor) {
	res := desc.Resource
	name := res.Name
	if name == "" {
		name = desc.Name
	}
	handler := s.resourceHandler(desc)

	s.mcp.AddResource(&mcp.Resource{
		URI:         res.URI,
		Name:        name,
		Description: desc.Description,
		MIMEType:    res.MIMEType,
	}, handler)
	s.resources = append(s.resources, res.URI)

	if tmpl := uriTemplate(res.URI, desc.Params); tmpl != "" {
		s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: tmpl,
			Name:        name,
			Description: desc.Description,
			MIMEType:    res.MIMEType,
		}, handler)
	}
}

// uriTemplate appends the declared parameters as a form-style query,
// e.g. unity://scripts{?searchPattern,includeContent}.
func uriTemplate(base string, def schema.Definition) string {
	if len(def.Fields) == 0 {
		return ""
	}
	names := make([]string, len(def.Fields))
	for i, f := range def.Fields {
		names[i] = f.Name
	}
	return base + "{?" + strings.Join(names, ",") + "}"
}

func (s *Server) resourceHandler(desc *registry.CallDescriptor) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		params, err := queryParams(uri, desc.Params)
		if err != nil {
			return nil, err
		}
		resp, err := s.invoker.Invoke(ctx, desc.Name, params)
		if err != nil {
			s.logger.Info("Resource read failed.", "uri", uri, "kind", protocol.KindOf(err))
			return nil, errors.Newf("%s: %s", protocol.KindOf(err), protocol.Detail(err))
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode resource")
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      uri,
				MIMEType: desc.Resource.MIMEType,
				Text:     string(data),
			}},
		}, nil
	}
}

// queryParams turns a resource URI's query into call parameters, typed by
// the declared fields. Values that do not parse are passed through as
// strings so validation reports them. Undeclared keys are dropped later.
func queryParams(uri string, def schema.Definition) (map[string]interface{}, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid resource uri '%s'", uri)
	}
	out := make(map[string]interface{})
	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		raw := values[len(values)-1]
		field, ok := def.Field(key)
		if !ok {
			continue
		}
		out[key] = typedValue(field.Type, raw)
	}
	return out, nil
}

func typedValue(t schema.FieldType, raw string) interface{} {
	switch t {
	case schema.TypeBoolean:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case schema.TypeInteger:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case schema.TypeNumber:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}
