// Package router mounts the gateway's forwarding table: each route
// proxies a path prefix to one backend service, plus an aggregation
// endpoint exposing every service's API documentation in one place.
package router

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Route describes one entry of the forwarding table.
type Route struct {
	// Name identifies the backend service (also the key under
	// /api-docs).
	Name string
	// Prefix is the inbound path prefix, e.g. "/api/customers".
	Prefix string
	// Target is the backend base URL, e.g. "http://customer-service:8081".
	Target string
	// StripPrefix removes Prefix from the forwarded path.
	StripPrefix bool
	// DocsPath is the backend's API documentation path, served under
	// /api-docs/<name>. Empty disables docs for the route.
	DocsPath string
}

// Router proxies requests to the configured backend services.
type Router struct {
	routes  []Route
	proxies map[string]*httputil.ReverseProxy
	targets map[string]*url.URL
	logger  *zap.Logger
}

// New builds a Router from the forwarding table. Invalid target URLs
// fail construction.
func New(routes []Route, l *zap.Logger) (*Router, error) {
	if l == nil {
		l = zap.NewNop()
	}
	r := &Router{
		routes:  routes,
		proxies: make(map[string]*httputil.ReverseProxy, len(routes)),
		targets: make(map[string]*url.URL, len(routes)),
		logger:  l.Named("router"),
	}

	for _, route := range routes {
		target, err := url.Parse(route.Target)
		if err != nil {
			return nil, fmt.Errorf("invalid target for route %s: %w", route.Name, err)
		}
		if target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid target for route %s: %q is not an absolute URL", route.Name, route.Target)
		}
		r.targets[route.Name] = target
		r.proxies[route.Name] = r.newProxy(route.Name, target)
	}
	return r, nil
}

// Mount registers every route plus the docs aggregator on the engine.
func (r *Router) Mount(engine *gin.Engine) {
	for _, route := range r.routes {
		route := route
		handler := r.forward(route)
		engine.Any(route.Prefix+"/*proxyPath", handler)
		engine.Any(route.Prefix, handler)
	}

	engine.GET("/api-docs", r.listDocs)
	engine.GET("/api-docs/:service", r.proxyDocs)
}

// forward returns the handler proxying one route.
func (r *Router) forward(route Route) gin.HandlerFunc {
	proxy := r.proxies[route.Name]
	return func(c *gin.Context) {
		if route.StripPrefix {
			trimmed := strings.TrimPrefix(c.Request.URL.Path, route.Prefix)
			if trimmed == "" {
				trimmed = "/"
			}
			c.Request.URL.Path = trimmed
		}
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}

// listDocs answers with the catalog of aggregated API documentation.
func (r *Router) listDocs(c *gin.Context) {
	type entry struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	entries := make([]entry, 0, len(r.routes))
	for _, route := range r.routes {
		if route.DocsPath == "" {
			continue
		}
		entries = append(entries, entry{
			Name: route.Name,
			URL:  "/api-docs/" + route.Name,
		})
	}
	c.JSON(http.StatusOK, gin.H{"services": entries})
}

// proxyDocs forwards a docs request to the named backend service.
func (r *Router) proxyDocs(c *gin.Context) {
	name := c.Param("service")
	var route *Route
	for i := range r.routes {
		if r.routes[i].Name == name && r.routes[i].DocsPath != "" {
			route = &r.routes[i]
			break
		}
	}
	if route == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown service: " + name})
		return
	}

	c.Request.URL.Path = route.DocsPath
	r.proxies[route.Name].ServeHTTP(c.Writer, c.Request)
}

// newProxy builds the reverse proxy for one target, answering 502 when
// the backend is unreachable.
func (r *Router) newProxy(name string, target *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		r.logger.Error("backend unreachable",
			zap.String("service", name),
			zap.String("path", req.URL.Path),
			zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, `{"error":"service %s unavailable"}`, name)
	}
	return proxy
}
