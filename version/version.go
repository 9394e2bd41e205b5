package version

import "runtime/debug"

// Version can be set at build time, e.g.
// go build -ldflags "-X github.com/soliddaw/daw/version.Version=$(git describe --dirty)" ./cmd/daw
var Version string

// VersionOrHash is Version when set, else the module version of a go install
// build, else the short VCS revision.
var VersionOrHash = versionOrHash()

func versionOrHash() string {
	if Version != "" {
		return Version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	return revision(info.Settings)
}

// revision is the first 7 characters of the commit, with -dirty appended if
// the tree was modified.
func revision(settings []debug.BuildSetting) string {
	var rev string
	dirty := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && dirty {
		rev += "-dirty"
	}
	return rev
}
