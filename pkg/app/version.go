package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
)

// 构建信息，可通过 -ldflags "-X 'github.com/lk2023060901/xdooria-combat/pkg/app.Version=v1.0.0'" 注入
// 未注入时从模块构建信息中读取
var (
	Version   = ""
	GitCommit = ""
	BuildDate = ""
	AppName   = ""
)

const unknown = "unknown"

func init() {
	if AppName == "" {
		AppName = "xdooria-combat"
		if execPath, err := os.Executable(); err == nil {
			AppName = filepath.Base(execPath)
		}
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(bi)
	}
	for _, p := range []*string{&Version, &GitCommit, &BuildDate} {
		if *p == "" {
			*p = unknown
		}
	}
}

func fillFromBuildInfo(bi *debug.BuildInfo) {
	if Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if GitCommit == "" {
				GitCommit = s.Value
			}
		case "vcs.time":
			if BuildDate == "" {
				BuildDate = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" && GitCommit != "" && GitCommit != unknown {
				GitCommit += "-dirty"
			}
		}
	}
}

// Info 版本信息
type Info struct {
	AppName   string `json:"app_name"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo 当前进程的版本信息
func GetInfo() Info {
	return Info{
		AppName:   AppName,
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Fields 日志键值对
func (i Info) Fields() []any {
	return []any{
		"name", i.AppName,
		"version", i.Version,
		"commit", i.GitCommit,
		"build_date", i.BuildDate,
		"go_version", i.GoVersion,
		"platform", i.Platform,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s)",
		i.AppName, i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}
