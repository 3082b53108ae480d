package version

import (
	"fmt"
	"runtime"
)

// Set at build time via -ldflags "-X github.com/projecteru2/bootenv/version.REVISION=...".
var (
	NAME     = "bootenv"
	VERSION  = "unknown"
	REVISION = "HEAD"
	BUILTAT  = "now"
)

// String returns the multi-line version banner.
func String() string {
	return fmt.Sprintf("Version:        %s\nGit hash:       %s\nBuilt:          %s\nGolang version: %s\nOS/Arch:        %s/%s\n",
		VERSION, REVISION, BUILTAT, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
