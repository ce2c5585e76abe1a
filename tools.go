//go:build tools
// +build tools

// Package tools declares tool dependencies for this module.
//
// These imports are not used at runtime. They keep mockgen, invoked via
// `go generate ./contract/...`, tracked in go.mod so a fresh checkout can
// regenerate the mocks.
package dm_chat

import (
	_ "go.uber.org/mock/mockgen"
)
