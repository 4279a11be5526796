package api

import (
	"context"
	"log/slog"
	"strings"
)

// Request contains route parameters and the payload that followed the path.
type Request struct {
	Ctx     context.Context
	Params  map[string]string
	Payload string
}

// Response holds the JSON string to return to the client.
type Response struct {
	JSON string
}

// HandlerFunc processes a request and populates the response.
// The logger is connection-scoped and carries the remote address.
type HandlerFunc func(req *Request, res *Response, logger *slog.Logger) error

// Router implements simple path pattern matching with placeholders in {name}.
type Router struct {
	routes []route
}

type route struct {
	parts   []string
	names   []string
	handler HandlerFunc
}

// NewRouter returns a new Router instance.
func NewRouter() *Router { return &Router{} }

// Register registers a handler for a path pattern like "override/{name}".
// Literal segments match case-insensitively; placeholder names keep their case.
func (r *Router) Register(pattern string, handler HandlerFunc) {
	segs := strings.Split(pattern, "/")
	rt := route{parts: make([]string, len(segs)), names: make([]string, len(segs)), handler: handler}
	for i, s := range segs {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			rt.names[i] = s[1 : len(s)-1]
			continue
		}
		rt.parts[i] = strings.ToLower(s)
	}
	r.routes = append(r.routes, rt)
}

// Match returns the handler and params of the first route matching path, or
// nil if none does.
func (r *Router) Match(path string) (HandlerFunc, map[string]string) {
	parts := strings.Split(strings.ToLower(path), "/")
	for _, rt := range r.routes {
		if params, ok := rt.match(parts); ok {
			return rt.handler, params
		}
	}
	return nil, nil
}

// Routes returns the registered patterns in registration order.
func (r *Router) Routes() []string {
	out := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		segs := make([]string, len(rt.parts))
		for i := range rt.parts {
			if rt.names[i] != "" {
				segs[i] = "{" + rt.names[i] + "}"
			} else {
				segs[i] = rt.parts[i]
			}
		}
		out = append(out, strings.Join(segs, "/"))
	}
	return out
}

func (rt route) match(parts []string) (map[string]string, bool) {
	if len(parts) != len(rt.parts) {
		return nil, false
	}
	params := map[string]string{}
	for i, p := range parts {
		if rt.names[i] != "" {
			params[rt.names[i]] = p
			continue
		}
		if rt.parts[i] != p {
			return nil, false
		}
	}
	return params, true
}
