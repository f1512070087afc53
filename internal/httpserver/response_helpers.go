package httpserver

import (
	"net/http"

	apierrors "github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/pkg/responders"
)

// writeJSON renders a success payload.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	responders.JSON(w, status, payload)
}

// writeError renders a typed error with its mapped status; untyped errors
// are masked behind internal_error after logging at the call site.
func writeError(w http.ResponseWriter, err error) {
	apierrors.WriteFromError(w, err)
}
