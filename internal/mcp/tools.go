package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/memberapi/internal/model"
	"github.com/faucetdb/memberapi/internal/store"
)

// Tool names.
const (
	ToolListAdmins  = "memberapi_list_admins"
	ToolGetAdmin    = "memberapi_get_admin"
	ToolAdminExists = "memberapi_admin_exists"
)

// registerTools registers all admin directory tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool(ToolListAdmins,
			mcp.WithDescription(
				"List all administrator accounts with id, username, emailid, active flag "+
					"and timestamps (YYYYMMDDHHMMSS). Password hashes are never returned.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListAdmins,
	)

	srv.AddTool(
		mcp.NewTool(ToolGetAdmin,
			mcp.WithDescription(
				"Get one administrator account by id or by username. When both are "+
					"given the id is used.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("id",
				mcp.Description("Admin id"),
			),
			mcp.WithString("username",
				mcp.Description("Admin username"),
			),
		),
		s.handleGetAdmin,
	)

	srv.AddTool(
		mcp.NewTool(ToolAdminExists,
			mcp.WithDescription(
				"Check whether an administrator exists. Exactly one lookup key is "+
					"used, in priority order id, username, emailid. Useful before "+
					"suggesting a new username or email.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("id",
				mcp.Description("Admin id"),
			),
			mcp.WithString("username",
				mcp.Description("Admin username"),
			),
			mcp.WithString("emailid",
				mcp.Description("Admin email address"),
			),
		),
		s.handleAdminExists,
	)
}

// handleListAdmins returns every admin without password hashes.
func (s *MCPServer) handleListAdmins(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	recs, err := s.identity.List(ctx)
	if err != nil {
		s.logger.Error("mcp list admins failed", "error", err)
		return toolError("Failed to list admins: %v", err)
	}

	return successJSON(map[string]interface{}{
		"resource": recs,
		"meta":     model.ResponseMeta{Count: len(recs)},
	})
}

// handleGetAdmin returns one admin by id or username.
func (s *MCPServer) handleGetAdmin(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id := int64(optionalInt(request, "id", 0))
	username := optionalString(request, "username")

	var (
		rec model.Record
		err error
	)
	switch {
	case id > 0:
		rec, err = s.identity.GetInfoByID(ctx, id)
	case username != "":
		rec, err = s.identity.GetInfoByUsername(ctx, username)
	default:
		return toolError("Provide an id or a username. Use %s to see all admins.", ToolListAdmins)
	}

	if errors.Is(err, store.ErrNotFound) {
		return toolError("Admin not found. Use %s to see all admins.", ToolListAdmins)
	}
	if err != nil {
		s.logger.Error("mcp get admin failed", "id", id, "username", username, "error", err)
		return toolError("Failed to get admin: %v", err)
	}
	return successJSON(rec)
}

// handleAdminExists reports whether an admin matches the given key.
func (s *MCPServer) handleAdminExists(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	l := store.Lookup{
		ID:       int64(optionalInt(request, "id", 0)),
		Username: optionalString(request, "username"),
		EmailID:  optionalString(request, "emailid"),
	}
	if l.ID < 0 {
		l.ID = 0
	}
	if l.ID == 0 && l.Username == "" && l.EmailID == "" {
		return toolError("Provide one of id, username or emailid")
	}

	return successJSON(map[string]bool{
		"exists": s.identity.Store().Exists(ctx, l),
	})
}
