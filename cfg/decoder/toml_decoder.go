package decoder

import (
	"github.com/BurntSushi/toml"
	"github.com/ZacharyGroff/kodawari/cfg/storage"
	"github.com/pkg/errors"
)

// TomlDecoder TOML 格式解码器
type TomlDecoder struct{}

func NewTomlDecoder() *TomlDecoder {
	return &TomlDecoder{}
}

func (t *TomlDecoder) Decode(data []byte) (storage.Storage, error) {
	var result map[string]any
	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode TOML")
	}
	return storage.NewMapStorage(normalizeToml(result)), nil
}

// normalizeToml 把 TOML 的表数组 []map[string]any 统一为 []any
func normalizeToml(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for k, item := range v {
			v[k] = normalizeToml(item)
		}
		return v
	case []map[string]any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = normalizeToml(item)
		}
		return items
	case []any:
		for i, item := range v {
			v[i] = normalizeToml(item)
		}
		return v
	}
	return value
}
