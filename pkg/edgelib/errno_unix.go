//go:build darwin || linux || freebsd || netbsd || openbsd
// +build darwin linux freebsd netbsd openbsd

package edgelib

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func errnoName(errno syscall.Errno) string {
	return unix.ErrnoName(errno)
}
