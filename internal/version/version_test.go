package version

import (
	"runtime/debug"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	t.Parallel()
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	}
	got := fromBuildInfo(Info{}, bi)
	if got.Version != "v1.2.3" || got.Commit != "0123456789abcdef0123" || got.BuildTime != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected info %+v", got)
	}
	if s := got.String(); s != "v1.2.3 (0123456789ab)" {
		t.Fatalf("String: got %q", s)
	}
}

func TestFromBuildInfoKeepsLinkerValues(t *testing.T) {
	t.Parallel()
	bi := &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffff"}},
	}
	got := fromBuildInfo(Info{Version: "v9", Commit: "abc"}, bi)
	if got.Version != "v9" || got.Commit != "abc" {
		t.Fatalf("linker values overwritten: %+v", got)
	}
	if got.String() != "v9 (abc)" {
		t.Fatalf("String: got %q", got.String())
	}
}

func TestResolveNeverEmpty(t *testing.T) {
	t.Parallel()
	info := Resolve()
	if info.Version == "" || info.GoVersion == "" {
		t.Fatalf("incomplete info %+v", info)
	}
}
