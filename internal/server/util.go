package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// headerWritten checks if response headers have already been written
func headerWritten(w http.ResponseWriter) bool {
	if ww, ok := w.(interface{ Written() bool }); ok {
		return ww.Written()
	}
	return false
}

// RespondWithError sends a JSON error response.
func (s *Server) RespondWithError(w http.ResponseWriter, r *http.Request, code int, message string) {
	s.RespondWithJSON(w, r, code, map[string]string{"error": message})
}

// RespondWithJSON sends a JSON response with the given status code and payload.
// If the payload is nil, no body is sent.
func (s *Server) RespondWithJSON(w http.ResponseWriter, r *http.Request, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("error encoding JSON response",
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
	}
}
