package intgen

import (
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidInstance 实例编号超出 [0, 1023]
var ErrInvalidInstance = errors.New("instance must be in [0, 1023]")

// DefaultOverflowWait 同一毫秒内序列号耗尽后的等待时长
const DefaultOverflowWait = time.Second

// SnowflakeOptions 配置选项
type SnowflakeOptions struct {
	// Instance 实例编号，同一时刻不同进程必须不同
	Instance int64 `cfg:"instance" validate:"gte=0,lte=1023"`
	// OverflowWait 序列号耗尽后的等待时长
	OverflowWait time.Duration `cfg:"overflowWait" def:"1s"`

	// Clock 和 Sleep 只能在代码中注入，为空时使用系统时钟和 time.Sleep
	Clock Clock               `cfg:"-"`
	Sleep func(time.Duration) `cfg:"-"`
}

// SnowflakeGenerator Snowflake算法生成器
// 64位结构：1位符号位(0) + 41位时间戳 + 10位实例编号 + 12位序列号
//
// 生成器只允许一个调用者使用，多个 goroutine 共享时使用 LockedGenerator 包装
// 时钟回拨不做处理，回拨后序列号从 0 开始，ID 可能小于之前生成的 ID
type SnowflakeGenerator struct {
	instance     int64
	clock        Clock
	sleep        func(time.Duration)
	overflowWait time.Duration
	onOverflow   func(relativeTimestamp int64)

	started           bool
	previousTimestamp int64
	sequence          int64
}

// NewSnowflakeGenerator 创建Snowflake生成器
func NewSnowflakeGenerator(instance int64) (*SnowflakeGenerator, error) {
	return NewSnowflakeGeneratorWithOptions(&SnowflakeOptions{Instance: instance})
}

func NewSnowflakeGeneratorWithOptions(options *SnowflakeOptions) (*SnowflakeGenerator, error) {
	if options == nil {
		options = &SnowflakeOptions{}
	}
	if options.Instance < 0 || options.Instance > maxInstance {
		return nil, errors.Wrapf(ErrInvalidInstance, "instance %d", options.Instance)
	}

	g := &SnowflakeGenerator{
		instance:     options.Instance,
		clock:        options.Clock,
		sleep:        options.Sleep,
		overflowWait: options.OverflowWait,
	}
	if g.clock == nil {
		g.clock = SystemClock
	}
	if g.sleep == nil {
		g.sleep = time.Sleep
	}
	if g.overflowWait <= 0 {
		g.overflowWait = DefaultOverflowWait
	}
	return g, nil
}

// Instance 返回实例编号
func (g *SnowflakeGenerator) Instance() int64 {
	return g.instance
}

// SetOverflowHook 设置溢出回调，每次溢出等待之前调用
func (g *SnowflakeGenerator) SetOverflowHook(hook func(relativeTimestamp int64)) {
	g.onOverflow = hook
}

// Next 生成Snowflake ID
// 同一毫秒内第 4097 次调用会阻塞 overflowWait，直到时钟离开该毫秒，序列号从 0 开始
func (g *SnowflakeGenerator) Next() int64 {
	current := g.now()

	if !g.started || current != g.previousTimestamp {
		g.sequence = 0
	} else {
		g.sequence++
		// 判断条件是 > maxSequence，4095 正常发出，下一次才等待
		for g.sequence > maxSequence {
			if g.onOverflow != nil {
				g.onOverflow(current)
			}
			g.sleep(g.overflowWait)

			// 等待之后必须重新读取时钟
			current = g.now()
			if current != g.previousTimestamp {
				g.sequence = 0
			}
		}
	}

	g.started = true
	g.previousTimestamp = current
	return Compose(current, g.instance, g.sequence)
}

func (g *SnowflakeGenerator) now() int64 {
	return g.clock.Now().UnixMilli() - Epoch
}
