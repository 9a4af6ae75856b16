package eapmockserver

import (
	"encoding/json"
	"net/http"
)

// writeJSON and badRequest mirror the response-writing shape the teacher's
// infrastructure/httputil package used for its marble handlers, trimmed
// down to the two helpers this mock server needs; the rest of that
// package's surface (service-identity headers, mTLS checks) has no
// counterpart here, see DESIGN.md.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}
