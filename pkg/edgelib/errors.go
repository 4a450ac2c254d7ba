package edgelib

import (
	"errors"
	"net/http"
	"syscall"

	"github.com/joomcode/errorx"
)

var (
	Errors = errorx.NewNamespace("edge")

	// UpstreamUnreachable: the relay got no response from the upstream.
	UpstreamUnreachable = Errors.NewType("upstream_unreachable")
	// NotFound: neither the resolved file nor the entry document could be read.
	NotFound = Errors.NewType("not_found")
	// FilesystemError: a read failed for any reason other than not-found.
	FilesystemError = Errors.NewType("filesystem_error")
	InvalidConfig   = Errors.NewType("invalid_config")
)

// StatusOf maps an error from this package to the HTTP status it is served with.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errorx.IsOfType(err, UpstreamUnreachable):
		return http.StatusBadGateway
	case errorx.IsOfType(err, NotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode names the errno behind err, e.g. "EACCES". Errors that carry no
// errno are reported as "UNKNOWN".
func ErrorCode(err error) string {
	// Wrap hides the cause from errors.As
	for {
		e := errorx.Cast(err)
		if e == nil || e.Cause() == nil {
			break
		}
		err = e.Cause()
	}

	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return "UNKNOWN"
	}
	if name := errnoName(errno); name != "" {
		return name
	}
	return errno.Error()
}
