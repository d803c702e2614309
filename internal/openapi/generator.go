package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/faucetdb/memberapi/internal/model"
)

// Component schema names.
const (
	SchemaAdmin         = "Admin"
	SchemaAdminCreate   = "AdminCreate"
	SchemaAdminUpdate   = "AdminUpdate"
	SchemaAdminKeyed    = "AdminKeyed"
	SchemaAdminList     = "AdminList"
	SchemaAPIVersion    = "APIVersion"
	SchemaSession       = "Session"
	SchemaErrorResponse = "ErrorResponse"
)

// timestampColumns hold YYYYMMDDHHMMSS integers.
var timestampColumns = map[string]bool{
	model.ColCreatedAt: true,
	model.ColUpdatedAt: true,
}

// Generate builds the OpenAPI 3.1 document for the admin API. columns
// describe the admins table; the password column is never exposed in
// response schemas.
func Generate(baseURL, version string, columns []model.Column) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       model.CurrentAPI.Name,
			Description: "Administrator accounts for the member registry.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["basicAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:   "http",
			Scheme: "basic",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"basicAuth": {}},
		{"bearerAuth": {}},
	}

	doc.Components.Schemas[SchemaErrorResponse] = errorSchema()
	doc.Components.Schemas[SchemaAPIVersion] = objectSchema(openapi3.Schemas{
		"api_version": typed("integer", "int32"),
		"name":        typed("string", ""),
	}, "api_version", "name")
	doc.Components.Schemas[SchemaAdmin] = adminSchema(columns)
	doc.Components.Schemas[SchemaAdminCreate] = objectSchema(credentialProps(), "username", "emailid", "password")
	doc.Components.Schemas[SchemaAdminUpdate] = updateSchema()
	doc.Components.Schemas[SchemaAdminKeyed] = keyedSchema()
	doc.Components.Schemas[SchemaAdminList] = listSchema()
	doc.Components.Schemas[SchemaSession] = objectSchema(openapi3.Schemas{
		"session_token": typed("string", ""),
		"token_type":    typed("string", ""),
		"expires_in":    typed("integer", "int32"),
		"admin_id":      typed("integer", "int64"),
		"username":      typed("string", ""),
	}, "session_token", "token_type", "expires_in")

	doc.Paths = openapi3.NewPaths()
	addPaths(doc)
	return doc
}

func addPaths(doc *openapi3.T) {
	noAuth := &openapi3.SecurityRequirements{}

	home := &openapi3.Operation{
		Tags:        []string{"meta"},
		Summary:     "API version",
		OperationID: "home",
		Security:    noAuth,
		Responses:   plainResponses("200", "API version", ref(SchemaAPIVersion)),
	}
	doc.Paths.Set("/api/", &openapi3.PathItem{Get: home})

	doc.Paths.Set("/api/session", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"session"},
			Summary:     "Exchange credentials for a bearer token",
			OperationID: "createSession",
			Responses:   newResponses("200", "Session created", ref(SchemaSession)),
		},
	})

	doc.Paths.Set("/api/admin", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "List admins",
			OperationID: "listAdmins",
			Responses:   newResponses("200", "All admins", ref(SchemaAdminList)),
		},
		Post: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Create an admin",
			OperationID: "createAdmin",
			RequestBody: requestBody(SchemaAdminCreate),
			Responses:   withConflict(newResponses("201", "Admin created", ref(SchemaAdminKeyed))),
		},
	})

	idParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("id").
			WithDescription("Admin id.").
			WithSchema(openapi3.NewInt64Schema()),
	}
	doc.Paths.Set("/api/admin/{id}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Get: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Get an admin",
			OperationID: "getAdmin",
			Responses:   newResponses("200", "The admin", ref(SchemaAdminKeyed)),
		},
		Patch: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Change username, emailid or password",
			OperationID: "updateAdmin",
			RequestBody: requestBody(SchemaAdminUpdate),
			Responses:   withConflict(newResponses("200", "The updated admin", ref(SchemaAdminKeyed))),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Delete an admin",
			Description: "Deleting an unknown id succeeds.",
			OperationID: "deleteAdmin",
			Responses:   newResponses("200", "Deleted", ref(SchemaAPIVersion)),
		},
	})
}

// ─── Schemas ────────────────────────────────────────────────────────────────

func adminSchema(columns []model.Column) *openapi3.SchemaRef {
	props := openapi3.Schemas{}
	var required []string
	for _, col := range columns {
		if col.Name == model.ColPassword {
			continue
		}
		m := MapDBType(col.Type)
		s := &openapi3.Schema{Type: &openapi3.Types{m.Type}, Format: m.Format}
		switch {
		case col.Name == model.ColActive:
			s.Description = "1 when the account may log in, 0 when disabled."
		case timestampColumns[col.Name]:
			s.Description = "Local time as YYYYMMDDHHMMSS."
		}
		props[col.Name] = &openapi3.SchemaRef{Value: s}
		if !col.Nullable {
			required = append(required, col.Name)
		}
	}
	return objectSchema(props, required...)
}

func credentialProps() openapi3.Schemas {
	return openapi3.Schemas{
		"username": typed("string", ""),
		"emailid":  typed("string", "email"),
		"password": &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:      &openapi3.Types{"string"},
			Format:    "password",
			WriteOnly: true,
		}},
	}
}

func updateSchema() *openapi3.SchemaRef {
	s := objectSchema(credentialProps())
	s.Value.Description = "At least one field must be non-empty."
	s.Value.MinProps = 1
	return s
}

// keyedSchema is the version envelope plus one property named by the admin
// id whose value is the admin without its id.
func keyedSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		AllOf: openapi3.SchemaRefs{ref(SchemaAPIVersion)},
		AdditionalProperties: openapi3.AdditionalProperties{
			Schema: ref(SchemaAdmin),
		},
		Description: "Keyed by admin id.",
	}}
}

func listSchema() *openapi3.SchemaRef {
	resource := &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:  &openapi3.Types{"array"},
		Items: ref(SchemaAdmin),
	}}
	meta := objectSchema(openapi3.Schemas{"count": typed("integer", "int64")}, "count")
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		AllOf: openapi3.SchemaRefs{
			ref(SchemaAPIVersion),
			objectSchema(openapi3.Schemas{"resource": resource, "meta": meta}, "resource"),
		},
	}}
}

func errorSchema() *openapi3.SchemaRef {
	detail := objectSchema(openapi3.Schemas{
		"code":    typed("integer", "int32"),
		"message": typed("string", ""),
		"context": typed("object", ""),
	}, "code", "message")
	return objectSchema(openapi3.Schemas{"error": detail}, "error")
}

func objectSchema(props openapi3.Schemas, required ...string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
		Required:   required,
	}}
}

func typed(typ, format string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{typ}, Format: format}}
}

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func requestBody(schema string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithJSONSchemaRef(ref(schema))}
}

// ─── Response Helpers ───────────────────────────────────────────────────────

func plainResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponsesWithCapacity(6)
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().
			WithDescription(description).
			WithContent(openapi3.NewContentWithJSONSchemaRef(schema)),
	})
	return responses
}

// newResponses builds a Responses map with a success response and the
// standard error responses of an authenticated route.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := plainResponses(statusCode, description, schema)
	for code, desc := range map[string]string{
		"400": "Bad request",
		"401": "Unauthorized",
		"404": "Not found",
		"500": "Internal server error",
	} {
		responses.Set(code, errorResponse(desc))
	}
	return responses
}

func withConflict(responses *openapi3.Responses) *openapi3.Responses {
	responses.Set("409", errorResponse("Username or emailid already taken"))
	return responses
}

func errorResponse(description string) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{
		Value: openapi3.NewResponse().
			WithDescription(description).
			WithContent(openapi3.NewContentWithJSONSchemaRef(ref(SchemaErrorResponse))),
	}
}
