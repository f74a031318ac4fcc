package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Stamped at release time via
// -ldflags "-X github.com/mutablelogic/go-collect/pkg/version.GitTag=..."
var (
	GitTag    string
	GitHash   string
	BuildTime string
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Version returns the release tag when one was stamped at build time,
// falling back to the short VCS revision from the embedded build info,
// and finally to "dev".
func Version() string {
	if GitTag != "" {
		return GitTag
	}
	if hash := vcsSetting("vcs.revision"); hash != "" {
		if len(hash) > 12 {
			hash = hash[:12]
		}
		return hash
	}
	return "dev"
}

// JSON returns build metadata for the named executable as indented JSON.
func JSON(name string) []byte {
	metadata := map[string]string{
		"name":     name,
		"version":  Version(),
		"compiler": runtime.Version(),
		"platform": runtime.GOOS + "/" + runtime.GOARCH,
	}
	if hash := firstOf(GitHash, vcsSetting("vcs.revision")); hash != "" {
		metadata["hash"] = hash
	}
	if t := firstOf(BuildTime, vcsSetting("vcs.time")); t != "" {
		metadata["build_time"] = t
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		panic(err)
	}
	return data
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func vcsSetting(key string) string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == key {
				return s.Value
			}
		}
	}
	return ""
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
