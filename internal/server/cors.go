package server

import "net/http"

// CORS computes cross-origin headers for every route from one place so the
// header policy cannot drift between endpoints.
type CORS struct {
	allowed map[string]struct{}
}

// NewCORS creates the negotiator. An empty allow-list echoes any requesting
// origin.
func NewCORS(allowedOrigins []string) *CORS {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &CORS{allowed: allowed}
}

// apply writes the negotiated headers. An acceptable origin is echoed with
// credentials enabled so the session cookie works cross-origin; requests
// without an origin get the wildcard; an origin outside a configured
// allow-list gets no allow-origin at all, not even the wildcard.
func (c *CORS) apply(w http.ResponseWriter, origin string) {
	h := w.Header()

	switch {
	case origin == "":
		h.Set("Access-Control-Allow-Origin", "*")
	case c.originAllowed(origin):
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
	}

	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	h.Set("Access-Control-Max-Age", "86400")
}

func (c *CORS) originAllowed(origin string) bool {
	if len(c.allowed) == 0 {
		return true
	}
	_, ok := c.allowed[origin]
	return ok
}

// Middleware attaches CORS headers to every response, success and error
// alike, and answers preflight requests centrally with a content-free 204 so
// route handlers never see OPTIONS.
func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.apply(w, r.Header.Get("Origin"))

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
