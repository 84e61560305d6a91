package cfg

import (
	"path/filepath"
	"strings"

	"github.com/ZacharyGroff/kodawari/cfg/provider"
	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
)

const (
	providerNamespace = "github.com/ZacharyGroff/kodawari/cfg/provider"
	decoderNamespace  = "github.com/ZacharyGroff/kodawari/cfg/decoder"
)

// NewConfig 从文件读取配置，根据扩展名选择解码器
//
// 支持的文件格式：
//   - .json -> JsonDecoder
//   - .yaml/.yml -> YamlDecoder
//   - .toml -> TomlDecoder
//   - .ini -> IniDecoder
//   - .env -> EnvDecoder
func NewConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, errors.New("filename cannot be empty")
	}

	decoderType, err := decoderTypeFor(filename)
	if err != nil {
		return nil, err
	}

	return NewConfigWithOptions(&Options{
		Provider: ref.TypeOptions{
			Namespace: providerNamespace,
			Type:      "FileProvider",
			Options:   &provider.FileProviderOptions{FilePath: filename},
		},
		Decoder: ref.TypeOptions{
			Namespace: decoderNamespace,
			Type:      decoderType,
		},
	})
}

// NewEnvConfig 从环境变量读取配置，envFiles 按顺序覆盖系统环境变量
//
// 环境变量以 UPPER_SNAKE 形式映射到 cfg 标签，如 MACHINE_INSTANCE_IDENTIFIER 对应 machineInstanceIdentifier
func NewEnvConfig(prefix string, envFiles ...string) (*Config, error) {
	return NewConfigWithOptions(&Options{
		Provider: ref.TypeOptions{
			Namespace: providerNamespace,
			Type:      "EnvProvider",
			Options: &provider.EnvProviderOptions{
				EnvFiles: envFiles,
				Prefix:   prefix,
			},
		},
		Decoder: ref.TypeOptions{
			Namespace: decoderNamespace,
			Type:      "EnvDecoder",
		},
	})
}

// NewCmdConfig 从命令行参数读取配置，args 为空时读取 os.Args[1:]
//
// 参数以小写中划线形式映射到 cfg 标签，如 --machine-instance-identifier 对应 machineInstanceIdentifier
func NewCmdConfig(prefix string, args ...string) (*Config, error) {
	return NewConfigWithOptions(&Options{
		Provider: ref.TypeOptions{
			Namespace: providerNamespace,
			Type:      "CmdProvider",
			Options: &provider.CmdProviderOptions{
				Prefix: prefix,
				Args:   args,
			},
		},
		Decoder: ref.TypeOptions{
			Namespace: decoderNamespace,
			Type:      "CmdDecoder",
		},
	})
}

func decoderTypeFor(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	// .env.local 之类的文件也按 env 格式处理
	if strings.HasPrefix(filepath.Base(filename), ".env") {
		ext = ".env"
	}

	switch ext {
	case ".json":
		return "JsonDecoder", nil
	case ".yaml", ".yml":
		return "YamlDecoder", nil
	case ".toml":
		return "TomlDecoder", nil
	case ".ini":
		return "IniDecoder", nil
	case ".env":
		return "EnvDecoder", nil
	}
	return "", errors.Errorf("unsupported config file extension: %q", ext)
}
