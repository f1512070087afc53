// Package responders holds the shared JSON response writer.
package responders

import (
	"encoding/json"
	"net/http"
)

// JSON writes payload as application/json with the given status. HTML
// escaping is off so PromptPay payloads and deep links round-trip intact.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
