package model

// APIVersion identifies the API in every successful response body.
type APIVersion struct {
	Version int    `json:"api_version"`
	Name    string `json:"name"`
}

// CurrentAPI is the version envelope served at /api/.
var CurrentAPI = APIVersion{Version: 1, Name: "Member API"}

// Envelope returns the version fields as a map so that handlers can merge
// their payload into it.
func (v APIVersion) Envelope() map[string]interface{} {
	return map[string]interface{}{
		"api_version": v.Version,
		"name":        v.Name,
	}
}

// ListResponse is the standard envelope for list endpoints, wrapping results
// in a "resource" array with count metadata.
type ListResponse struct {
	Resource []Record     `json:"resource"`
	Meta     *ResponseMeta `json:"meta,omitempty"`
}

// ResponseMeta carries list metadata.
type ResponseMeta struct {
	Count int `json:"count"`
}

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}
