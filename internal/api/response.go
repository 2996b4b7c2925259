package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/assettrack/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"message": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// fail maps a store error onto an HTTP status. Unexpected errors are logged
// and only described to the client in development mode.
func (d *Deps) fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonError(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, notFoundMessage(err))
	case errors.Is(err, store.ErrForbidden):
		jsonError(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, store.ErrConflict):
		jsonError(w, http.StatusConflict, "resource was modified concurrently, retry")
	default:
		slog.Error(message, "method", r.Method, "path", r.URL.Path, "error", err)
		body := map[string]string{"message": message}
		if d.Dev {
			body["error"] = err.Error()
		}
		jsonResponse(w, http.StatusInternalServerError, body)
	}
}

// notFoundMessage turns "asset not found" style errors into client text,
// dropping any wrapping context.
func notFoundMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return msg
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// Pagination defaults.
const (
	defaultLimit = 10
	maxLimit     = 100
)

func parsePage(r *http.Request) (store.Page, error) {
	p := store.Page{Page: 1, Limit: defaultLimit}
	q := r.URL.Query()
	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return p, errors.New("page must be a positive integer")
		}
		p.Page = n
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return p, errors.New("limit must be a positive integer")
		}
		p.Limit = min(n, maxLimit)
	}
	return p, nil
}

// listResponse builds the paginated list body.
func listResponse(key string, items any, total int, page store.Page) map[string]any {
	return map[string]any{
		key:           items,
		"totalItems":  total,
		"totalPages":  int(math.Ceil(float64(total) / float64(page.Limit))),
		"currentPage": page.Page,
	}
}

func queryInt64(r *http.Request, name string) (*int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &n, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("%s must be true or false", name)
	}
	return &b, nil
}

// queryDateRange reads startDate and endDate. Plain dates are accepted; an
// end date without a time covers the whole day.
func queryDateRange(r *http.Request) (store.DateRange, error) {
	var dr store.DateRange
	q := r.URL.Query()
	if s := q.Get("startDate"); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return dr, errors.New("startDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		}
		dr.From = t
	}
	if s := q.Get("endDate"); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return dr, errors.New("endDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		dr.To = t
	}
	return dr, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}

// nonNil keeps empty lists serialized as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
