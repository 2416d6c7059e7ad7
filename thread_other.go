//go:build !linux

package v8host

// threadID has no portable implementation outside Linux; every thread
// shares one enter stack there.
func threadID() int {
	return 0
}
