package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// DecodeJSON decodes the request body into dest. On malformed input it
// writes a 400 response and returns false; the caller should return.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		WriteBadRequest(w, "invalid request body")
		return false
	}
	return true
}

// PathInt64 parses the named mux path variable as an int64, writing a 400
// response when the segment is missing or not numeric.
func PathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		WriteBadRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

// QueryString returns the named query parameter, or the default when absent.
func QueryString(r *http.Request, key, defaultVal string) string {
	if val := r.URL.Query().Get(key); val != "" {
		return val
	}
	return defaultVal
}

// RequireNonEmpty writes a validation error when value is blank after
// trimming. Returns true when the value is usable.
func RequireNonEmpty(w http.ResponseWriter, value, fieldName string) bool {
	if strings.TrimSpace(value) == "" {
		WriteValidationError(w, fmt.Sprintf("%s is required", fieldName))
		return false
	}
	return true
}
