//go:build !v8

package v8host

import (
	"github.com/cryguy/v8host/internal/core"
	"github.com/cryguy/v8host/internal/quickjs"
)

func newBackend() core.Backend {
	return quickjs.NewBackend()
}
