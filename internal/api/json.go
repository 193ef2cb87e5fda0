package api

import (
	"encoding/json"
	"net/http"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// RejectedIDs lists individually rejected items when a batch was
	// partially invalid.
	RejectedIDs []string `json:"rejected_ids,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

func writeValidationProblem(w http.ResponseWriter, detail, instance string, rejected []string) {
	writeJSON(w, http.StatusBadRequest, Problem{
		Type:        "about:blank",
		Title:       "Invalid optimize request",
		Status:      http.StatusBadRequest,
		Detail:      detail,
		Instance:    instance,
		RejectedIDs: rejected,
	})
}
