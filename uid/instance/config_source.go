package instance

import (
	"context"
	"strconv"
	"strings"

	"github.com/ZacharyGroff/kodawari/cfg"
	"github.com/ZacharyGroff/kodawari/log"
	"github.com/ZacharyGroff/kodawari/log/logger"
	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
)

// DefaultKey 实例编号的配置项，环境变量形式为 MACHINE_INSTANCE_IDENTIFIER
const DefaultKey = "machineInstanceIdentifier"

type ConfigSourceOptions struct {
	// File 配置文件路径，为空时从环境变量读取
	File string `cfg:"file"`
	// EnvPrefix 环境变量前缀，读取时移除
	EnvPrefix string `cfg:"envPrefix"`
	// EnvFiles 覆盖系统环境变量的 .env 文件
	EnvFiles []string `cfg:"envFiles"`
	// Key 实例编号的配置项
	Key string `cfg:"key" def:"machineInstanceIdentifier"`
	// DisableCmd 为 true 时不读取 --machine-instance-identifier 参数
	DisableCmd bool `cfg:"disableCmd"`
	// CmdPrefix 命令行参数前缀，读取时移除
	CmdPrefix string `cfg:"cmdPrefix"`
	// Args 为空时读取 os.Args[1:]
	Args []string `cfg:"args"`

	Logger *ref.TypeOptions `cfg:"logger"`
}

// ConfigSource 从命令行参数、环境变量或配置文件读取实例编号
// 命令行参数优先；不做跨进程协调，编号的唯一性由部署保证
type ConfigSource struct {
	file       string
	envPrefix  string
	envFiles   []string
	key        string
	disableCmd bool
	cmdPrefix  string
	args       []string
	logger     logger.Logger
}

// NewConfigSource 从环境变量 MACHINE_INSTANCE_IDENTIFIER 读取实例编号
func NewConfigSource() *ConfigSource {
	return &ConfigSource{key: DefaultKey, logger: log.Default()}
}

func NewConfigSourceWithOptions(options *ConfigSourceOptions) (*ConfigSource, error) {
	if options == nil {
		return NewConfigSource(), nil
	}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}

	key := options.Key
	if key == "" {
		key = DefaultKey
	}

	return &ConfigSource{
		file:       options.File,
		envPrefix:  options.EnvPrefix,
		envFiles:   options.EnvFiles,
		key:        key,
		disableCmd: options.DisableCmd,
		cmdPrefix:  options.CmdPrefix,
		args:       options.Args,
		logger:     l,
	}, nil
}

func (s *ConfigSource) Acquire(ctx context.Context) (int64, error) {
	value, from, err := s.lookup()
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, errors.WithMessage(ErrInstanceNotSet, s.key)
	}

	instance, err := strconv.ParseInt(strings.TrimSpace(*value), 10, 64)
	if err != nil {
		return 0, errors.WithMessagef(ErrInstanceNotNumeric, "%s=%q", s.key, *value)
	}

	s.logger.InfoContext(ctx, "instance identifier loaded", "key", s.key, "from", from, "instance", instance)
	return instance, nil
}

// lookup 依次读取命令行参数和配置文件或环境变量，返回第一个存在的值
func (s *ConfigSource) lookup() (*string, string, error) {
	type loader struct {
		name string
		load func() (*cfg.Config, error)
	}
	var loaders []loader
	if !s.disableCmd {
		loaders = append(loaders, loader{name: "cmd", load: func() (*cfg.Config, error) {
			return cfg.NewCmdConfig(s.cmdPrefix, s.args...)
		}})
	}
	if s.file != "" {
		loaders = append(loaders, loader{name: "file", load: func() (*cfg.Config, error) {
			return cfg.NewConfig(s.file)
		}})
	} else {
		loaders = append(loaders, loader{name: "env", load: func() (*cfg.Config, error) {
			return cfg.NewEnvConfig(s.envPrefix, s.envFiles...)
		}})
	}

	for _, l := range loaders {
		c, err := l.load()
		if err != nil {
			return nil, "", errors.WithMessagef(err, "failed to load %s config", l.name)
		}

		var value *string
		err = c.Sub(s.key).ConvertTo(&value)
		_ = c.Close()
		if err != nil {
			return nil, "", errors.WithMessagef(err, "failed to read %s from %s", s.key, l.name)
		}
		if value != nil {
			return value, l.name, nil
		}
	}
	return nil, "", nil
}

// Release 配置来源不持有任何资源
func (s *ConfigSource) Release(ctx context.Context) error {
	return nil
}
