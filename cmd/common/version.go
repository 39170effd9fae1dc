package common

import (
	"fmt"
	"io"
	"runtime"
)

const (
	ProjectName    = "Pump Short Bot"
	ProjectVersion = "1.0.0"
	ProjectRepo    = "github.com/ducminhle1904/pump-short-bot"
)

// Set with -ldflags "-X github.com/ducminhle1904/pump-short-bot/cmd/common.BuildCommit=...".
var (
	BuildDate   = "unknown"
	BuildCommit = "dev"
)

type VersionInfo struct {
	ProjectName  string `json:"project_name"`
	Version      string `json:"version"`
	BuildDate    string `json:"build_date"`
	BuildCommit  string `json:"build_commit"`
	GoVersion    string `json:"go_version"`
	Architecture string `json:"architecture"`
	Repository   string `json:"repository"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		ProjectName:  ProjectName,
		Version:      ProjectVersion,
		BuildDate:    BuildDate,
		BuildCommit:  BuildCommit,
		GoVersion:    runtime.Version(),
		Architecture: runtime.GOOS + "/" + runtime.GOARCH,
		Repository:   ProjectRepo,
	}
}

func PrintVersion(w io.Writer, appName string) {
	info := GetVersionInfo()
	fmt.Fprintf(w, "%s v%s\n", appName, info.Version)
	fmt.Fprintf(w, "Build: %s (%s)\n", info.BuildCommit, info.BuildDate)
	fmt.Fprintf(w, "Go: %s (%s)\n", info.GoVersion, info.Architecture)
}

func IsDevBuild() bool {
	return BuildCommit == "dev"
}
