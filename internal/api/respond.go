package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "fleetbook/internal/errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Kind        string `json:"kind,omitempty"`
	ConflictIDs []int  `json:"conflict_ids,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps a core error to its HTTP status and, for scheduling
// conflicts, surfaces the blocking booking ids so the caller can render a
// useful message.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error(), Kind: string(apperrors.KindOf(err))}
	var e *apperrors.Error
	if errors.As(err, &e) {
		body.ConflictIDs = e.ConflictIDs
	}
	writeJSON(w, apperrors.HTTPStatus(err), body)
}
