// Package buildinfo provides build-time properties injected via ldflags:
//
//	go build -ldflags "-X github.com/nomis52/gotranscribe/buildinfo.version=v1.2.0"
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

const unknown = "unknown"

// Properties holds build-time properties.
type Properties struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// Set with -ldflags -X.
var (
	version   = unknown
	buildTime = unknown
	gitCommit = unknown
)

// Get returns the current build properties. Fields not set with ldflags fall
// back to the VCS data the Go toolchain embeds.
func Get() Properties {
	p := Properties{
		Version:   version,
		BuildTime: buildTime,
		GitCommit: gitCommit,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		p.fillFrom(info)
	}
	return p
}

func (p *Properties) fillFrom(info *debug.BuildInfo) {
	if p.Version == unknown && info.Main.Version != "" && info.Main.Version != "(devel)" {
		p.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if p.GitCommit == unknown {
				p.GitCommit = s.Value
			}
		case "vcs.time":
			if p.BuildTime == unknown {
				p.BuildTime = s.Value
			}
		}
	}
}

func (p Properties) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", p.Version, p.GitCommit, p.BuildTime)
}
