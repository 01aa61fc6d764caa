// Package gate decides, from the authentication probe, whether the protected
// or the public area is active and which route the user may stay on.
package gate

import "strings"

// Status is the outcome of the latest authentication probe.
type Status int

const (
	// StatusUnknown means the first probe has not completed (loading).
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Routes.
const (
	RouteHome     = "/"
	RouteSettings = "/settings"
	RouteWelcome  = "/welcome"
	RouteSignIn   = "/signin"
	RouteSignUp   = "/signup"
)

var (
	protectedRoutes = map[string]bool{RouteHome: true, RouteSettings: true}
	publicRoutes    = map[string]bool{RouteWelcome: true, RouteSignIn: true, RouteSignUp: true}
)

// Decision is what the gate does with one route under one status.
type Decision struct {
	Path string
	// Redirect is the route to go to instead of Path; empty means stay.
	Redirect string
	// Loading is true while the status is unknown; nothing is rendered or redirected.
	Loading bool
	// NotFound marks a path that is neither protected nor public.
	NotFound bool
}

// Target is where the user ends up.
func (d Decision) Target() string {
	if d.Redirect != "" {
		return d.Redirect
	}
	return d.Path
}

// IsProtected reports whether path requires authentication.
func IsProtected(path string) bool { return protectedRoutes[Normalize(path)] }

// IsPublic reports whether path is only for signed-out users.
func IsPublic(path string) bool { return publicRoutes[Normalize(path)] }

// Normalize trims whitespace, a trailing slash and any query or fragment.
func Normalize(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return RouteHome
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = RouteHome
		}
	}
	return path
}

// Decide applies the routing rules.
func Decide(status Status, path string) Decision {
	path = Normalize(path)
	d := Decision{Path: path}

	switch {
	case status == StatusUnknown:
		d.Loading = true
	case status == StatusUnauthenticated && protectedRoutes[path]:
		d.Redirect = RouteWelcome
	case status == StatusAuthenticated && publicRoutes[path]:
		d.Redirect = RouteHome
	case !protectedRoutes[path] && !publicRoutes[path]:
		d.NotFound = true
	}
	return d
}
