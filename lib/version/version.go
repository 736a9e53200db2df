// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the
// changegate binary.
//
// Release builds inject the package variables via -ldflags, for
// example:
//
//	go build -ldflags "-X github.com/changegate/changegate/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds fall back to the VCS metadata the Go toolchain
// stamps into the binary, when available.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	dirty := ""
	if isDirty() {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, Commit(), dirty, BuildTime)
}

// Full returns detailed version information including Go version.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Commit returns the git commit SHA: the injected value when the build
// set one, otherwise the revision stamped by the Go toolchain,
// otherwise "unknown".
func Commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	if revision, _, ok := vcsInfo(); ok {
		return revision
	}
	return GitCommit
}

func isDirty() bool {
	if GitCommit != "unknown" {
		return GitDirty == "true"
	}
	_, modified, _ := vcsInfo()
	return modified
}

// vcsInfo reads the VCS stamp from the binary's build info. The
// revision is shortened to 12 characters.
func vcsInfo() (revision string, modified bool, ok bool) {
	info, readOK := debug.ReadBuildInfo()
	if !readOK {
		return "", false, false
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > 12 {
				revision = revision[:12]
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	return revision, modified, revision != ""
}
