package intgen

import (
	"sync"

	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
)

type LockedGeneratorOptions struct {
	// Generator 被包装的生成器配置
	Generator *ref.TypeOptions `cfg:"generator" validate:"required"`
}

// LockedGenerator 用互斥锁串行化 Next 调用，使单写者的生成器可以被多个 goroutine 共享
type LockedGenerator struct {
	mu        sync.Mutex
	generator IntGenerator
}

func NewLockedGenerator(generator IntGenerator) *LockedGenerator {
	return &LockedGenerator{generator: generator}
}

func NewLockedGeneratorWithOptions(options *LockedGeneratorOptions) (*LockedGenerator, error) {
	if options == nil || options.Generator == nil {
		return nil, errors.New("generator options is required")
	}
	generator, err := NewIntGeneratorWithOptions(options.Generator)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create underlying generator")
	}
	return NewLockedGenerator(generator), nil
}

func (g *LockedGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generator.Next()
}

// SetOverflowHook 转发给底层生成器，底层不支持时忽略
func (g *LockedGenerator) SetOverflowHook(hook func(relativeTimestamp int64)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if notifier, ok := g.generator.(OverflowNotifier); ok {
		notifier.SetOverflowHook(hook)
	}
}
