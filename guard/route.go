package guard

import (
	"net/url"

	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
)

// Route names the guard redirects to.
const (
	RouteLogin   = "login"
	RouteSetup   = "setup"
	RouteWelcome = "welcome"
)

// Route is one side of a navigation.
type Route struct {
	Name      string
	Path      string
	FullPath  string // path with query string
	Query     url.Values
	Params    map[string]string
	Anonymous bool // reachable without authentication
}

// Target is a redirect destination.
type Target struct {
	Name   string
	Query  url.Values
	Params map[string]string
}

// Decision is the outcome of a guard evaluation. A nil Redirect allows the
// navigation.
type Decision struct {
	Redirect *Target
}

func Allow() Decision {
	return Decision{}
}

func RedirectTo(t Target) Decision {
	return Decision{Redirect: &t}
}

func (d Decision) Allowed() bool {
	return d.Redirect == nil
}

// loginTarget sends the user to login, remembering where they were going
// unless that was the login page itself.
func loginTarget(to Route) Target {
	t := Target{Name: RouteLogin, Query: url.Values{}}
	if to.FullPath != "" && to.FullPath != oauth2.LoginPath {
		t.Query.Set(oauth2.QueryParamFrom, to.FullPath)
	}
	return t
}

// sameQuery compares queries by value; nil and empty are equal.
func sameQuery(a, b url.Values) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
	}
	return true
}
