//go:build !(darwin || linux || freebsd || netbsd || openbsd)
// +build !darwin,!linux,!freebsd,!netbsd,!openbsd

package edgelib

import "syscall"

func errnoName(syscall.Errno) string {
	return ""
}
