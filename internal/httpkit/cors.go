// Package httpkit holds small HTTP and PostgreSQL helpers shared by the API
// handlers and the run repository.
package httpkit

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSOptions configures the CORS middleware. An origin of "*" allows any
// origin. Empty method and header lists fall back to the run API's needs.
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAgeSeconds    int
}

// CORS answers preflight requests and sets the allow headers for permitted
// origins. Disallowed origins get no CORS headers; the browser blocks them.
func CORS(opt CORSOptions) func(http.Handler) http.Handler {
	if len(opt.AllowedMethods) == 0 {
		opt.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(opt.AllowedHeaders) == 0 {
		opt.AllowedHeaders = []string{"Content-Type", "Authorization", "Accept"}
	}
	if opt.MaxAgeSeconds == 0 {
		opt.MaxAgeSeconds = 600
	}

	origins, anyOrigin := originSet(opt.AllowedOrigins)
	headers := map[string]string{
		"Access-Control-Allow-Methods": strings.Join(opt.AllowedMethods, ", "),
		"Access-Control-Allow-Headers": strings.Join(opt.AllowedHeaders, ", "),
		"Access-Control-Max-Age":       strconv.Itoa(opt.MaxAgeSeconds),
	}
	if len(opt.ExposedHeaders) > 0 {
		headers["Access-Control-Expose-Headers"] = strings.Join(opt.ExposedHeaders, ", ")
	}
	if opt.AllowCredentials {
		headers["Access-Control-Allow-Credentials"] = "true"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (anyOrigin || origins[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				for k, v := range headers {
					h.Set(k, v)
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originSet(in []string) (map[string]bool, bool) {
	set := make(map[string]bool, len(in))
	for _, o := range in {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			return nil, true
		default:
			set[o] = true
		}
	}
	return set, false
}
