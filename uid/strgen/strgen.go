package strgen

import (
	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[*DecimalGenerator](NewDecimalGeneratorWithOptions)
}

// StrGenerator 生成字符串UID的接口
type StrGenerator interface {
	// Next 生成下一个字符串UID
	Next() string
}

// NewStrGeneratorWithOptions 创建字符串生成器
func NewStrGeneratorWithOptions(options *ref.TypeOptions) (StrGenerator, error) {
	if options == nil {
		return nil, errors.New("generator options is nil")
	}
	generator, err := ref.New(options.Namespace, options.Type, options.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.New failed")
	}
	g, ok := generator.(StrGenerator)
	if !ok {
		return nil, errors.Errorf("%T is not a StrGenerator", generator)
	}
	return g, nil
}
