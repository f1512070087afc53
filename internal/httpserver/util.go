package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/money"
)

// maxBodyBytes caps request bodies. Rail callbacks and POS payloads are
// small; anything near this limit is garbage.
const maxBodyBytes = 1 << 20

// decodeJSON decodes a JSON request body into dest, rejecting unknown
// fields so a typoed key fails loudly at the POS instead of silently.
func decodeJSON(r io.ReadCloser, dest any) error {
	defer r.Close()
	decoder := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return apierrors.Wrap(apierrors.ErrCodeInvalidField, err, "malformed request body")
	}
	return nil
}

// readBody slurps a raw body for webhook handlers that need the exact
// bytes for signatures and archiving.
func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, apierrors.Wrap(apierrors.ErrCodeInvalidField, err, "read request body")
	}
	return body, nil
}

// pathID parses the {id} URL segment.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierrors.E(apierrors.ErrCodeInvalidField, "invalid id %q", raw)
	}
	return id, nil
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(r *http.Request, key string) (*int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apierrors.E(apierrors.ErrCodeInvalidField, "invalid %s %q", key, raw)
	}
	return &v, nil
}

// queryTime parses an optional RFC3339 or date-only query parameter.
func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apierrors.E(apierrors.ErrCodeInvalidField, "invalid %s %q", key, raw)
}

// bahtField parses a baht string ("125.50") from a request into satang.
func bahtField(value, field string) (money.Amount, error) {
	if value == "" {
		return 0, apierrors.E(apierrors.ErrCodeMissingField, "missing %s", field)
	}
	a, err := money.ParseBaht(value)
	if err != nil {
		return 0, apierrors.Wrap(apierrors.ErrCodeInvalidAmount, err, "parse %s", field)
	}
	return a, nil
}
