//go:build linux

package v8host

import "golang.org/x/sys/unix"

// threadID identifies the OS thread the caller runs on.
func threadID() int {
	return unix.Gettid()
}
