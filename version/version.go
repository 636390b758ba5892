package version

import "fmt"

// Set at build time with -ldflags "-X github.com/TFMV/bdt/version.Version=...".
var Version = "0.1.0"
var BuildDate = "2025-02-20"
var Commit = "unknown"

// CreatedBy is the writer identification stored in files bdt produces.
func CreatedBy() string {
	return fmt.Sprintf("bdt version %s", Version)
}

// Info is the build information reported by the version command and API.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	Commit    string `json:"commit" yaml:"commit"`
}

func GetInfo() Info {
	return Info{Version: Version, BuildDate: BuildDate, Commit: Commit}
}
