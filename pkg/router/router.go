package router

import (
	"net/http"
	"strings"
	"time"

	"calc-pipeline/pkg/logger"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// Router is a small method aware mux with wildcard path segments. A *
// segment matches exactly one path segment; a trailing * swallows the
// rest of the path
type Router struct {
	mux      *http.ServeMux
	routes   map[string]HandlerFunc // key = METHOD:PATH
	paths    map[string]bool
	patterns []string // wildcard resolution follows registration order
	log      *logger.Logger
}

func New(log *logger.Logger) *Router {
	if log == nil {
		log = logger.Nop()
	}
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
		log:    log,
	}
	r.mux.HandleFunc("/", r.dispatch)
	return r
}

// dispatch resolves exact routes first, then wildcard routes, and logs
// every request with its final status
func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	key := req.Method + ":" + req.URL.Path
	if h, ok := r.routes[key]; ok {
		h(lrw, req)
	} else if h := r.wildcardHandler(req.Method, req.URL.Path); h != nil {
		h(lrw, req)
	} else if r.paths[req.URL.Path] {
		http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
	} else {
		http.Error(lrw, "Not Found", http.StatusNotFound)
	}

	r.log.Info("request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", lrw.statusCode,
		"duration", time.Since(start),
	)
}

// wildcardHandler returns the first registered wildcard route matching
// the path, so specific routes registered earlier win over generic ones
func (r *Router) wildcardHandler(method, path string) HandlerFunc {
	for _, pattern := range r.patterns {
		if !strings.Contains(pattern, "/*") || !matchRoute(path, pattern) {
			continue
		}
		if h, ok := r.routes[method+":"+pattern]; ok {
			return h
		}
	}
	return nil
}

// matchRoute checks a request path against a route pattern segment by
// segment
func matchRoute(requestPath, pattern string) bool {
	reqSegs := strings.Split(strings.Trim(requestPath, "/"), "/")
	patSegs := strings.Split(strings.Trim(pattern, "/"), "/")

	// a trailing * matches any number of remaining segments
	if len(patSegs) > 0 && patSegs[len(patSegs)-1] == "*" {
		if len(reqSegs) < len(patSegs)-1 {
			return false
		}
		for i := 0; i < len(patSegs)-1; i++ {
			if patSegs[i] != "*" && reqSegs[i] != patSegs[i] {
				return false
			}
		}
		return true
	}

	if len(reqSegs) != len(patSegs) {
		return false
	}
	for i, seg := range patSegs {
		if seg == "*" {
			continue
		}
		if reqSegs[i] != seg {
			return false
		}
	}
	return true
}

// --- Register paths ---

func (r *Router) register(method, path string, handler HandlerFunc) {
	r.routes[method+":"+path] = handler
	if !r.paths[path] {
		r.paths[path] = true
		r.patterns = append(r.patterns, path)
	}
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Getter methods for testing
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

func (r *Router) Paths() map[string]bool {
	return r.paths
}

// ServeHTTP makes the router a plain http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Start blocks serving on addr
func (r *Router) Start(addr string) error {
	r.log.Info("server started", "addr", addr)
	return http.ListenAndServe(addr, r)
}

// --- Logging response writer to capture status codes ---

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
