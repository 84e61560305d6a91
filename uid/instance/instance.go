package instance

import (
	"context"

	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[*ConfigSource](NewConfigSourceWithOptions)
	ref.MustRegisterT[*RedisSource](NewRedisSourceWithOptions)
}

var (
	// ErrInstanceNotSet 配置中没有实例编号
	ErrInstanceNotSet = errors.New("machine instance identifier is not set")
	// ErrInstanceNotNumeric 实例编号不是整数
	ErrInstanceNotNumeric = errors.New("machine instance identifier is not numeric")
	// ErrNoFreeInstance 所有实例编号都已被占用
	ErrNoFreeInstance = errors.New("no free instance identifier")
	// ErrLeaseLost 实例编号的租约已经被其他进程持有
	ErrLeaseLost = errors.New("instance lease lost")
)

// MaxInstance 可分配的最大实例编号
const MaxInstance = 1023

// Source 实例编号来源
// 同一时刻不同进程拿到的实例编号必须不同，Acquire 失败时应该终止启动
type Source interface {
	// Acquire 获取实例编号，重复调用返回同一个编号
	Acquire(ctx context.Context) (int64, error)
	// Release 释放实例编号
	Release(ctx context.Context) error
}

func NewSourceWithOptions(options *ref.TypeOptions) (Source, error) {
	if options == nil {
		return nil, errors.New("source options is nil")
	}
	obj, err := ref.New(options.Namespace, options.Type, options.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.New failed")
	}
	source, ok := obj.(Source)
	if !ok {
		return nil, errors.Errorf("%T is not a Source", obj)
	}
	return source, nil
}
