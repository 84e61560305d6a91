package decoder

import (
	"strings"

	"github.com/ZacharyGroff/kodawari/cfg/storage"
	"github.com/pkg/errors"
)

// EnvDecoder .env 格式解码器
// 值保持为字符串，由 FlatStorage 按目标类型解析；成对的单引号或双引号会被去掉
type EnvDecoder struct{}

func NewEnvDecoder() *EnvDecoder {
	return &EnvDecoder{}
}

func (e *EnvDecoder) Decode(data []byte) (storage.Storage, error) {
	result, err := decodeLines(data)
	if err != nil {
		return nil, err
	}
	return storage.NewFlatStorage(result).WithSeparator("_").WithUppercase(true), nil
}

// decodeLines 解析 KEY=VALUE 行，单行长度不受限制
func decodeLines(data []byte) (map[string]any, error) {
	result := make(map[string]any)
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, errors.Errorf("invalid format at line %d: missing '=' separator", i+1)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, errors.Errorf("invalid format at line %d: empty key", i+1)
		}
		result[key] = unquote(strings.TrimSpace(value))
	}
	return result, nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}
