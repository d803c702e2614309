package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/memberapi/internal/model"
	"github.com/faucetdb/memberapi/internal/service"
	"github.com/faucetdb/memberapi/internal/store"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("Invalid admin ID: " + idStr)
	}
	return id, nil
}

// classifyStoreError maps store and service errors to an HTTP status code and
// a client-facing message.
func classifyStoreError(err error, fallbackMsg string) (int, string) {
	switch {
	case errors.Is(err, store.ErrInvalidArgument),
		errors.Is(err, store.ErrNoDiscriminant):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, service.ErrAdminExists),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict, service.ErrAdminExists.Error()

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "admin not found"

	default:
		return http.StatusInternalServerError, fallbackMsg
	}
}

// adminBody renders a single admin in the keyed form: the version envelope
// plus {"<id>": record without its id}.
func adminBody(id int64, rec model.Record) map[string]interface{} {
	body := model.CurrentAPI.Envelope()
	body[strconv.FormatInt(id, 10)] = rec.Without(model.ColID)
	return body
}
