package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/wardenhq/warden/internal/model"
)

// writeError writes the standard error envelope. Middleware cannot use the
// handler package's helpers without an import cycle, so it carries its own.
func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
