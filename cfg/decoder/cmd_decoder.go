package decoder

import (
	"github.com/ZacharyGroff/kodawari/cfg/storage"
)

// CmdDecoder 命令行参数解码器
// 输入为 CmdProvider 输出的 key=value 行，字段路径以 "-" 拼接，驼峰名对应小写中划线形式的参数名
type CmdDecoder struct{}

func NewCmdDecoder() *CmdDecoder {
	return &CmdDecoder{}
}

func (c *CmdDecoder) Decode(data []byte) (storage.Storage, error) {
	result, err := decodeLines(data)
	if err != nil {
		return nil, err
	}
	return storage.NewFlatStorage(result).WithSeparator("-").WithKebab(true), nil
}
