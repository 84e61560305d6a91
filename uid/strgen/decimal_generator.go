package strgen

import (
	"strconv"

	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/ZacharyGroff/kodawari/uid/intgen"
	"github.com/pkg/errors"
)

// ErrInvalidDecimal 不是合法的十进制 ID
var ErrInvalidDecimal = errors.New("invalid decimal identifier")

type DecimalOptions struct {
	// Generator 底层整数生成器配置
	Generator *ref.TypeOptions `cfg:"generator" validate:"required"`
}

// DecimalGenerator 以十进制字符串输出整数 ID，用于 /recipes/{id} 这样的资源路径
type DecimalGenerator struct {
	generator intgen.IntGenerator
}

func NewDecimalGenerator(generator intgen.IntGenerator) *DecimalGenerator {
	return &DecimalGenerator{generator: generator}
}

func NewDecimalGeneratorWithOptions(options *DecimalOptions) (*DecimalGenerator, error) {
	if options == nil || options.Generator == nil {
		return nil, errors.New("generator options is required")
	}
	generator, err := intgen.NewIntGeneratorWithOptions(options.Generator)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create int generator")
	}
	return NewDecimalGenerator(generator), nil
}

func (g *DecimalGenerator) Next() string {
	return FormatDecimal(g.generator.Next())
}

func FormatDecimal(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseDecimal 解析十进制 ID，拒绝负数、符号、空白和超出 int64 的值
func ParseDecimal(s string) (int64, error) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, errors.WithMessagef(ErrInvalidDecimal, "%q", s)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.WithMessagef(ErrInvalidDecimal, "%q", s)
	}
	return id, nil
}
