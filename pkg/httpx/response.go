package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// JSON writes v as JSON with the given status code. Stock levels change on
// every write, so responses are marked no-store alongside the Content-Type
// and X-Content-Type-Options headers. Encoding errors are discarded.
func JSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes a standard {"error": message} JSON response.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// WarningValue formats text as a miscellaneous (199) Warning header value.
func WarningValue(text string) string {
	return "199 - " + strconv.Quote(text)
}

// Warn adds a 199 Warning header. Call it before JSON.
func Warn(w http.ResponseWriter, text string) {
	w.Header().Add("Warning", WarningValue(text))
}
