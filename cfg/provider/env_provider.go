package provider

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type EnvProviderOptions struct {
	// EnvFiles 按顺序加载的 .env 文件，后面的覆盖前面的，系统环境变量优先级最低
	EnvFiles []string `cfg:"envFiles"`
	// Prefix 环境变量前缀过滤，如 "KODAWARI_" 只处理 KODAWARI_ 开头的环境变量，处理时直接移除前缀
	Prefix string `cfg:"prefix"`
}

// EnvProvider 以 .env 格式输出环境变量，交给 EnvDecoder 解码
type EnvProvider struct {
	envFiles []string
	prefix   string
}

func NewEnvProviderWithOptions(options *EnvProviderOptions) (*EnvProvider, error) {
	if options == nil {
		options = &EnvProviderOptions{}
	}

	var envFiles []string
	for _, file := range options.EnvFiles {
		if file == "" {
			continue
		}
		absPath, err := filepath.Abs(file)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid env file path: %s", file)
		}
		envFiles = append(envFiles, absPath)
	}

	return &EnvProvider{
		envFiles: envFiles,
		prefix:   options.Prefix,
	}, nil
}

func (p *EnvProvider) Load() ([]byte, error) {
	envVars := make(map[string]string)

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if key = p.filterKeyWithPrefix(key); key != "" {
			envVars[key] = value
		}
	}

	for _, envFile := range p.envFiles {
		// 文件不存在时跳过
		if err := p.loadEnvFile(envFile, envVars); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.WithMessagef(err, "failed to load env file: %s", envFile)
		}
	}

	keys := make([]string, 0, len(envVars))
	for key := range envVars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// 不做引号处理，交给 decoder
	var b strings.Builder
	for _, key := range keys {
		if strings.ContainsAny(envVars[key], "\r\n") {
			continue
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(envVars[key])
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

func (p *EnvProvider) loadEnvFile(filename string, envVars map[string]string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			continue
		}
		if key = p.filterKeyWithPrefix(strings.TrimSpace(key)); key != "" {
			envVars[key] = value
		}
	}
	return nil
}

// filterKeyWithPrefix 返回空字符串表示应该跳过这个键
func (p *EnvProvider) filterKeyWithPrefix(key string) string {
	if p.prefix == "" {
		return key
	}
	if !strings.HasPrefix(key, p.prefix) {
		return ""
	}
	return key[len(p.prefix):]
}

// OnChange 环境变量不支持变更监听
func (p *EnvProvider) OnChange(fn func(data []byte) error) {}

func (p *EnvProvider) Watch() error {
	return nil
}

func (p *EnvProvider) Close() error {
	return nil
}
