// Package version reports the build stamp of the running binary.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Version is the release version. Release builds override it with
// -ldflags "-X github.com/containercopier/container-copier/internal/version.Version=...".
var Version = ""

// Info is the build stamp read from the binary.
type Info struct {
	Version string
	Commit  string
	Dirty   bool
	Date    time.Time
}

// Read returns the stamp of the running binary.
func Read() Info {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return FromBuildInfo(nil)
	}
	return FromBuildInfo(bi)
}

// FromBuildInfo extracts the stamp from bi, which may be nil.
func FromBuildInfo(bi *debug.BuildInfo) Info {
	info := Info{Version: Version}
	if bi == nil {
		if info.Version == "" {
			info.Version = "dev"
		}
		return info
	}
	if info.Version == "" {
		info.Version = bi.Main.Version
	}
	if info.Version == "" || info.Version == "(devel)" {
		info.Version = "dev"
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Commit = setting.Value
			if len(info.Commit) > 7 {
				info.Commit = info.Commit[:7]
			}
		case "vcs.modified":
			info.Dirty = setting.Value == "true"
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				info.Date = t
			}
		}
	}
	return info
}

// String renders "<version> (<commit>[-dirty] <date>)". Parts that are
// unknown are left out.
func (i Info) String() string {
	date := ""
	if !i.Date.IsZero() {
		date = i.Date.UTC().Format("2006-01-02")
	}
	switch {
	case i.Commit != "":
		commit := i.Commit
		if i.Dirty {
			commit += "-dirty"
		}
		if date == "" {
			return fmt.Sprintf("%s (%s)", i.Version, commit)
		}
		return fmt.Sprintf("%s (%s %s)", i.Version, commit, date)
	case date != "":
		return fmt.Sprintf("%s (%s)", i.Version, date)
	default:
		return i.Version
	}
}
