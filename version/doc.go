// Package version reports build information for the taskchain binary.
//
// Values are injected at link time:
//
//	go build -ldflags "-X github.com/kbukum/taskchain/version.Version=1.2.0 \
//	    -X github.com/kbukum/taskchain/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Anything not injected falls back to the VCS stamps recorded by the Go
// toolchain in the binary's build info.
package version
