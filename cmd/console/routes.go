package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/TechQuilaMx/kestra-rbac-oauth/guard"
)

// consoleRoute is a named console page. Segments in braces are parameters.
type consoleRoute struct {
	name      string
	pattern   string
	anonymous bool
}

// consoleRoutes are matched in order, so literal paths come before the
// tenant wildcards.
var consoleRoutes = []consoleRoute{
	{name: guard.RouteLogin, pattern: "/ui/login", anonymous: true},
	{name: guard.RouteSetup, pattern: "/ui/setup", anonymous: true},
	{name: "oauth2-callback", pattern: "/ui/oauth2-callback", anonymous: true},
	{name: guard.RouteWelcome, pattern: "/ui/welcome"},
	{name: "flows/list", pattern: "/ui/flows"},
	{name: "executions/list", pattern: "/ui/executions"},
	{name: "admin/settings", pattern: "/ui/settings"},
	{name: "home", pattern: "/ui"},
	{name: guard.RouteWelcome, pattern: "/ui/{tenant}/welcome"},
	{name: "dashboard", pattern: "/ui/{tenant}/dashboards/{dashboard}"},
	{name: "flows/list", pattern: "/ui/{tenant}/flows"},
	{name: "flows/update", pattern: "/ui/{tenant}/flows/edit/{namespace}/{id}"},
	{name: "executions/list", pattern: "/ui/{tenant}/executions"},
	{name: "home", pattern: "/ui/{tenant}"},
}

// parseRoute resolves a console URL path to a guard route. Unknown paths are
// named after themselves and require authentication.
func parseRoute(raw string) (guard.Route, error) {
	if raw == "" {
		return guard.Route{}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return guard.Route{}, fmt.Errorf("invalid route %q: %w", raw, err)
	}
	path := u.Path
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}

	r := guard.Route{
		Name:     path,
		Path:     path,
		FullPath: path,
		Query:    u.Query(),
	}
	if u.RawQuery != "" {
		r.FullPath += "?" + u.RawQuery
	}
	for _, cr := range consoleRoutes {
		if params, ok := matchPattern(cr.pattern, path); ok {
			r.Name = cr.name
			r.Params = params
			r.Anonymous = cr.anonymous
			break
		}
	}
	return r, nil
}

func matchPattern(pattern, path string) (map[string]string, bool) {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(segs) {
		return nil, false
	}
	var params map[string]string
	for i, p := range ps {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			if segs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = map[string]string{}
			}
			params[p[1:len(p)-1]] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return params, true
}
