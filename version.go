// Package ragent is a retrieval-augmented agent runtime: agents answer
// queries from a document store, plan multi-step tasks and judge their own
// responses.
package ragent

import (
	"fmt"
	"runtime"
)

// Version is overridden at release time with
// -ldflags "-X github.com/felixgeelhaar/ragent.Version=...".
var Version = "0.1.0"

// GetVersion returns Version.
func GetVersion() string { return Version }

// UserAgent identifies ragent to remote LLM providers.
func UserAgent() string {
	return fmt.Sprintf("ragent/%s (%s; %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
