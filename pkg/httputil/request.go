package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid JSON: %v", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteAppError(w, r, err)
		return false
	}
	return true
}

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, apperr.Validation("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil || val <= 0 {
		return 0, apperr.Validation("invalid id for %s: %s", key, str)
	}
	return val, nil
}

// ParsePathInt64OrError extracts an int64 path parameter and writes error on failure
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathInt64(r, key)
	if err != nil {
		WriteAppError(w, r, err)
		return 0, false
	}
	return val, true
}

// ParseQueryInt64 extracts and parses an int64 query parameter
func ParseQueryInt64(r *http.Request, key string, defaultVal int64) (int64, error) {
	str := strings.TrimSpace(r.URL.Query().Get(key))
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return defaultVal
	}
	return val
}

// ParseQueryDate parses a YYYY-MM-DD or RFC3339 query parameter. A missing
// value returns the zero time.
func ParseQueryDate(r *http.Request, key string) (time.Time, error) {
	str := strings.TrimSpace(r.URL.Query().Get(key))
	if str == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("invalid date for query param %s: %s", key, str)
}

// RequireNonEmpty returns a validation error if value is blank
func RequireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Validation("%s is required", fieldName)
	}
	return nil
}

// FirstError returns the first non-nil error, for chaining simple checks
func FirstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ID is the common {id} request body used by update/status/delete routes.
type ID struct {
	ID int64 `json:"id"`
}

// Validate checks the id is set
func (i ID) Validate() error {
	if i.ID <= 0 {
		return apperr.Validation("id is required")
	}
	return nil
}

// StatusChange is the common {id, isActive} body for activate/deactivate
// routes.
type StatusChange struct {
	ID       int64 `json:"id"`
	IsActive int   `json:"isActive"`
}

// Validate checks id and flag range
func (s StatusChange) Validate() error {
	if s.ID <= 0 {
		return apperr.Validation("id is required")
	}
	if s.IsActive != 0 && s.IsActive != 1 {
		return apperr.Validation("isActive must be 0 or 1, got %d", s.IsActive)
	}
	return nil
}

// IDList is a list of ids that decodes from a JSON array of numbers or from
// a comma-joined string such as "3,5,8".
type IDList []int64

// UnmarshalJSON accepts both encodings. Blank entries are skipped.
func (l *IDList) UnmarshalJSON(data []byte) error {
	var ids []int64
	if err := json.Unmarshal(data, &ids); err == nil {
		*l = ids
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return apperr.Validation("expected a list of ids")
	}
	out := make([]int64, 0)
	for _, part := range strings.Split(joined, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return apperr.Validation("invalid id in list: %s", part)
		}
		out = append(out, id)
	}
	*l = out
	return nil
}

// Unique returns the ids without duplicates, keeping first occurrences.
func (l IDList) Unique() []int64 {
	seen := make(map[int64]bool, len(l))
	out := make([]int64, 0, len(l))
	for _, id := range l {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp decodes RFC3339 values and the zone-less forms produced by
// datetime-local and date inputs, which are read as UTC. null and "" decode
// to the zero time.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return apperr.Validation("expected a date/time string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return apperr.Validation("invalid date/time: %s", s)
}

// MarshalJSON encodes the zero time as null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339))
}

// OrNow returns t clamped to now: zero and future times become now.
func (t Timestamp) OrNow(now time.Time) time.Time {
	if t.IsZero() || t.After(now) {
		return now
	}
	return t.Time
}

// OptionalID decodes an id sent as a number, a numeric string, "" or null.
// The blank forms decode to 0, meaning unset.
type OptionalID int64

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*o = OptionalID(n)
		return nil
	}
	if string(data) == "null" {
		*o = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return apperr.Validation("expected an id")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*o = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return apperr.Validation("invalid id: %s", s)
	}
	*o = OptionalID(n)
	return nil
}
