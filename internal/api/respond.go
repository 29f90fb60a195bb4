package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/tvbridge/internal/device"
	"github.com/nerrad567/tvbridge/internal/multiroom"
	"github.com/nerrad567/tvbridge/internal/scene"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess writes a 200 response carrying success:true plus any
// operation-specific fields.
func writeSuccess(w http.ResponseWriter, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

// writeFailure writes a handled-failure response in the standard envelope.
func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// writeOperationError converts an operation error into the failure
// envelope. Missing scenes, sync groups, and devices map to 404;
// everything else is a handled 500.
func writeOperationError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, scene.ErrSceneNotFound) ||
		errors.Is(err, multiroom.ErrSyncGroupNotFound) ||
		errors.Is(err, device.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeFailure(w, status, err.Error())
}

// writeUnauthorized writes a 401 failure response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusUnauthorized, message)
}

// writeInternalError writes a 500 failure response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusInternalServerError, message)
}

// decodeJSON parses the request body into v. On failure it writes the
// failure envelope and returns false; the handler should return.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFailure(w, http.StatusInternalServerError, "invalid request body: "+err.Error())
		return false
	}
	return true
}
