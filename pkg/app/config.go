package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，XDOORIA_COMBAT_SIM_TICK_RATE 覆盖 sim.tick_rate
const EnvPrefix = "XDOORIA_COMBAT"

// ErrVersionRequested 命令行带 --version，调用方打印版本后退出
var ErrVersionRequested = errors.New("app: version requested")

// Flag 命令行参数到配置键的映射，仅在显式指定时覆盖其他来源
type Flag struct {
	Name  string
	Key   string
	Usage string
}

// Loader 配置加载器
// 优先级：命令行显式参数 > 环境变量 > 配置文件 > 默认值
type Loader struct {
	fs        *pflag.FlagSet
	envPrefix string
	flags     []Flag

	configPath string
	logPath    string
	values     map[string]*string
	version    bool
}

// NewLoader 在 fs 上注册 --config、--log.path、--version 以及 flags
func NewLoader(fs *pflag.FlagSet, envPrefix string, flags ...Flag) *Loader {
	l := &Loader{
		fs:        fs,
		envPrefix: envPrefix,
		flags:     flags,
		values:    make(map[string]*string, len(flags)),
	}

	execDir, err := ExecDir()
	if err != nil {
		execDir = "."
	}
	fs.StringVarP(&l.configPath, "config", "c", filepath.Join(execDir, "config.yaml"), "path to config file")
	fs.StringVar(&l.logPath, "log.path", filepath.Join(execDir, "logs", "combat.log"), "output path for logs")
	fs.BoolVar(&l.version, "version", false, "print version and exit")
	for _, f := range flags {
		l.values[f.Name] = fs.String(f.Name, "", f.Usage)
	}
	return l
}

// Load 解析 args 并把配置解码到 target，随后按 validate 标签校验
func (l *Loader) Load(args []string, target any, opts ...config.Option) error {
	if !l.fs.Parsed() {
		if err := l.fs.Parse(args); err != nil {
			return err
		}
	}
	if l.version {
		return ErrVersionRequested
	}

	v := viper.New()
	v.SetEnvPrefix(l.envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// 配置文件：--config > <PREFIX>_CONFIG > 可执行文件目录下的 config.yaml
	if !l.fs.Changed("config") {
		if env := os.Getenv(l.envPrefix + "_CONFIG"); env != "" {
			l.configPath = env
		}
	}
	if _, err := os.Stat(l.configPath); err != nil {
		return fmt.Errorf("config file not found at %s: %w", l.configPath, err)
	}

	v.SetDefault("log.output_path", l.logPath)
	if l.fs.Changed("log.path") {
		v.Set("log.output_path", l.logPath)
	}
	for _, f := range l.flags {
		if l.fs.Changed(f.Name) {
			v.Set(f.Key, *l.values[f.Name])
		}
	}

	mgr := config.NewManager(append(opts, config.WithViper(v))...)
	if err := mgr.LoadFile(l.configPath); err != nil {
		return err
	}
	if err := mgr.Unmarshal(target); err != nil {
		return err
	}
	if err := config.Validate(target); err != nil {
		return err
	}

	l.logPath = v.GetString("log.output_path")
	if v.GetBool("log.enable_file") && l.logPath != "" {
		if err := os.MkdirAll(filepath.Dir(l.logPath), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	return nil
}

// ConfigPath 最终使用的配置文件路径
func (l *Loader) ConfigPath() string {
	return l.configPath
}

// LogPath 最终生效的日志路径
func (l *Loader) LogPath() string {
	return l.logPath
}

// LoadConfig 使用进程参数加载配置
func LoadConfig(target any, flags ...Flag) error {
	return NewLoader(pflag.CommandLine, EnvPrefix, flags...).Load(os.Args[1:], target)
}

// ExecDir 可执行文件所在目录（处理符号链接）
func ExecDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	realPath, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		return filepath.Dir(execPath), nil
	}
	return filepath.Dir(realPath), nil
}
