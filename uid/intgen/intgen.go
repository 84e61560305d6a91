package intgen

import (
	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[*SnowflakeGenerator](NewSnowflakeGeneratorWithOptions)
	ref.MustRegisterT[*LockedGenerator](NewLockedGeneratorWithOptions)
	ref.MustRegisterT[*ObservableGenerator](NewObservableGeneratorWithOptions)
}

// IntGenerator 生成64位整数UID的接口
type IntGenerator interface {
	// Next 生成下一个64位整数UID
	Next() int64
}

// OverflowNotifier 可以通知序列号溢出等待的生成器
type OverflowNotifier interface {
	// SetOverflowHook 设置溢出回调，参数为发生溢出的相对时间戳
	SetOverflowHook(hook func(relativeTimestamp int64))
}

// NewIntGeneratorWithOptions 创建整数生成器
func NewIntGeneratorWithOptions(options *ref.TypeOptions) (IntGenerator, error) {
	if options == nil {
		return nil, errors.New("generator options is nil")
	}
	generator, err := ref.New(options.Namespace, options.Type, options.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.New failed")
	}
	if generator == nil {
		return nil, errors.New("generator is nil")
	}
	if _, ok := generator.(IntGenerator); !ok {
		return nil, errors.Errorf("%T is not an IntGenerator", generator)
	}

	return generator.(IntGenerator), nil
}
