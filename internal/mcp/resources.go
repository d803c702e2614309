package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/memberapi/internal/model"
)

const (
	apiResourceURI    = "memberapi://api"
	schemaURIPrefix   = "memberapi://schema/"
	schemaURITemplate = schemaURIPrefix + "{table}"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// memberapi://api: version and admin count
	srv.AddResource(
		mcp.NewResource(
			apiResourceURI,
			"Member API",
			mcp.WithResourceDescription(
				"API name and version with the number of administrator accounts.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleAPIResource,
	)

	// memberapi://schema/{table}: column layout of a table
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			schemaURITemplate,
			"Table Schema",
			mcp.WithTemplateDescription(
				"Column names, declared types, nullability and primary key of a "+
					"table in the member database, e.g. memberapi://schema/admins.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleSchemaResource,
	)
}

// handleAPIResource returns the version envelope plus the admin count.
func (s *MCPServer) handleAPIResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	n, err := s.identity.Store().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count admins: %w", err)
	}

	body := model.CurrentAPI.Envelope()
	body["admins"] = n
	return jsonResource(apiResourceURI, body)
}

// handleSchemaResource returns the described schema of one table.
func (s *MCPServer) handleSchemaResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	table := strings.TrimPrefix(uri, schemaURIPrefix)
	if table == "" || table == uri {
		return nil, fmt.Errorf("invalid schema URI %q: expected %s", uri, schemaURITemplate)
	}

	tables := s.identity.Store().Tables()
	ts, err := tables.Describe(ctx, table)
	if err != nil {
		names, _ := tables.ListTables(ctx)
		return nil, fmt.Errorf("failed to describe table %q: %w (available: %v)", table, err, names)
	}

	return jsonResource(uri, ts)
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
