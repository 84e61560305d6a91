package decoder

import (
	"github.com/ZacharyGroff/kodawari/cfg/storage"
	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[*EnvDecoder](NewEnvDecoder)
	ref.MustRegisterT[*CmdDecoder](NewCmdDecoder)
	ref.MustRegisterT[*JsonDecoder](NewJsonDecoder)
	ref.MustRegisterT[*YamlDecoder](NewYamlDecoder)
	ref.MustRegisterT[*TomlDecoder](NewTomlDecoder)
	ref.MustRegisterT[*IniDecoder](NewIniDecoder)
}

// Decoder 配置数据解码器接口
// 负责将 Provider 读取的原始数据转换为存储对象
type Decoder interface {
	Decode(data []byte) (storage.Storage, error)
}

func NewDecoderWithOptions(options *ref.TypeOptions) (Decoder, error) {
	if options == nil {
		return nil, errors.New("decoder options is nil")
	}
	obj, err := ref.New(options.Namespace, options.Type, options.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.New failed")
	}
	decoder, ok := obj.(Decoder)
	if !ok {
		return nil, errors.Errorf("%T is not a Decoder", obj)
	}
	return decoder, nil
}
