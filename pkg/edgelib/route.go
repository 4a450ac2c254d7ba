package edgelib

import "strings"

// Target is where the router sends a request.
type Target int

const (
	TargetStatic Target = iota
	TargetProxy
)

func (t Target) String() string {
	if t == TargetProxy {
		return "proxy"
	}
	return "static"
}

// Route decides between the proxy relay and the static resolver from the raw
// request path (query included). It never touches the filesystem, so the api
// prefix can not be shadowed by a static file of the same name.
func Route(prefix, requestPath string) Target {
	if strings.HasPrefix(requestPath, prefix) {
		return TargetProxy
	}
	return TargetStatic
}
