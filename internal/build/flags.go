// SPDX-License-Identifier: MIT
//
// Package build holds the application name, build timestamp, Git commit and
// semantic version embedded at compile time with linker flags:
//
//	go build -ldflags "-X specverb/internal/build.buildName=specverb \
//	  -X specverb/internal/build.buildVersion=0.1.0 ..."
//
// Development builds without ldflags fall back to the module build info.
package build

import (
	"fmt"
	"runtime/debug"
)

const (
	defaultName        = "specverb"
	defaultDescription = "Real-time spectral reverb"
	unknown            = "unknown"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information. These are populated by
// -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = developmentFlags()

	readBuildInfo = debug.ReadBuildInfo
)

func developmentFlags() *ldFlags {
	return &ldFlags{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     "dev",
	}
}

// Initialize copies the ldflags variables into the build information. A
// build that sets none of them gets development defaults; a build that sets
// only some of them is rejected.
func Initialize() error {
	if buildName == "" && buildTime == "" && buildCommit == "" && buildVersion == "" {
		buildFlags = developmentFlags()
		applyBuildInfo(buildFlags)
		return nil
	}

	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// applyBuildInfo fills version and VCS details from the Go toolchain's
// embedded build information, when present.
func applyBuildInfo(f *ldFlags) {
	info, ok := readBuildInfo()
	if !ok {
		return
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		f.Version = v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			f.Commit = s.Value
		case "vcs.time":
			f.Time = s.Value
		}
	}
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the build information for version output.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
