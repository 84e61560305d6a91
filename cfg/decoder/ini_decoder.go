package decoder

import (
	"github.com/ZacharyGroff/kodawari/cfg/storage"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// IniDecoder INI 格式解码器
// 默认分区的键位于顶层，其他分区作为子对象，值均为字符串
type IniDecoder struct{}

func NewIniDecoder() *IniDecoder {
	return &IniDecoder{}
}

func (i *IniDecoder) Decode(data []byte) (storage.Storage, error) {
	file, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true}, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode INI")
	}

	result := make(map[string]any)
	for _, section := range file.Sections() {
		target := result
		if section.Name() != ini.DefaultSection {
			sub := make(map[string]any)
			result[section.Name()] = sub
			target = sub
		}
		for _, key := range section.Keys() {
			target[key.Name()] = key.Value()
		}
	}
	return storage.NewMapStorage(result), nil
}
