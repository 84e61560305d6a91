package uid

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/ZacharyGroff/kodawari/cfg"
	"github.com/ZacharyGroff/kodawari/cfg/storage"
	"github.com/ZacharyGroff/kodawari/log"
	"github.com/ZacharyGroff/kodawari/log/logger"
	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/ZacharyGroff/kodawari/uid/instance"
	"github.com/ZacharyGroff/kodawari/uid/intgen"
	"github.com/ZacharyGroff/kodawari/uid/strgen"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// NewIntGeneratorWithOptions 创建整数生成器
func NewIntGeneratorWithOptions(options *ref.TypeOptions) (intgen.IntGenerator, error) {
	return intgen.NewIntGeneratorWithOptions(options)
}

// NewStrGeneratorWithOptions 创建字符串生成器
func NewStrGeneratorWithOptions(options *ref.TypeOptions) (strgen.StrGenerator, error) {
	return strgen.NewStrGeneratorWithOptions(options)
}

type ObservableSettings struct {
	Name          string           `cfg:"name" def:"uid"`
	EnableMetrics bool             `cfg:"enableMetrics" def:"true"`
	EnableLogging bool             `cfg:"enableLogging"`
	EnableTracing bool             `cfg:"enableTracing"`
	Logger        *ref.TypeOptions `cfg:"logger"`

	Registerer prometheus.Registerer `cfg:"-"`
}

// Options 启动选项
type Options struct {
	// Instance 实例编号来源，为空时从环境变量 MACHINE_INSTANCE_IDENTIFIER 读取
	Instance ref.TypeOptions `cfg:"instance"`
	// OverflowWait 同一毫秒内序列号耗尽后的等待时长
	OverflowWait time.Duration `cfg:"overflowWait" def:"1s"`
	// Locked 是否允许多个 goroutine 共享生成器
	Locked bool `cfg:"locked"`
	// Observable 为空时不包装观测装饰器
	Observable *ObservableSettings `cfg:"observable"`
	// Watch 为 true 时监听配置变更，热更新 logger.options.level，只对 NewGeneratorFromConfig 生效
	Watch bool `cfg:"watch"`

	Logger *ref.TypeOptions `cfg:"logger"`
}

// Generator 持有实例编号的生成器，Close 时释放编号
type Generator struct {
	generator intgen.IntGenerator
	source    instance.Source
	instance  int64
	logger    logger.Logger

	closeOnce   sync.Once
	closeResult error
}

// NewGenerator 获取实例编号并创建生成器，任何一步失败都返回错误，调用方应该终止启动
func NewGenerator(ctx context.Context, options *Options) (*Generator, error) {
	if options == nil {
		options = &Options{}
	}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}

	sourceOptions := options.Instance
	if sourceOptions.Type == "" {
		sourceOptions = ref.TypeOptions{
			Namespace: "github.com/ZacharyGroff/kodawari/uid/instance",
			Type:      "ConfigSource",
		}
	}
	source, err := instance.NewSourceWithOptions(&sourceOptions)
	if err != nil {
		l.ErrorContext(ctx, "failed to create instance source", "type", sourceOptions.Type, "error", err.Error())
		return nil, errors.WithMessage(err, "failed to create instance source")
	}

	id, err := source.Acquire(ctx)
	if err != nil {
		l.ErrorContext(ctx, "failed to acquire instance identifier", "type", sourceOptions.Type, "error", err.Error())
		closeSource(source)
		return nil, errors.WithMessage(err, "failed to acquire instance identifier")
	}

	generator, err := newIntGenerator(id, options)
	if err != nil {
		l.ErrorContext(ctx, "failed to create generator", "instance", id, "error", err.Error())
		_ = source.Release(ctx)
		closeSource(source)
		return nil, err
	}

	l.InfoContext(ctx, "identifier generator ready", "instance", id, "locked", options.Locked)
	return &Generator{
		generator: generator,
		source:    source,
		instance:  id,
		logger:    l,
	}, nil
}

func newIntGenerator(id int64, options *Options) (intgen.IntGenerator, error) {
	snowflake, err := intgen.NewSnowflakeGeneratorWithOptions(&intgen.SnowflakeOptions{
		Instance:     id,
		OverflowWait: options.OverflowWait,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create snowflake generator")
	}

	var generator intgen.IntGenerator = snowflake
	if options.Locked {
		generator = intgen.NewLockedGenerator(generator)
	}

	if settings := options.Observable; settings != nil {
		observable, err := intgen.NewObservableGenerator(generator, &intgen.ObservableOptions{
			Name:          settings.Name,
			Logger:        settings.Logger,
			EnableMetrics: settings.EnableMetrics,
			EnableLogging: settings.EnableLogging,
			EnableTracing: settings.EnableTracing,
			Registerer:    settings.Registerer,
		})
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create observable generator")
		}
		generator = observable
	}
	return generator, nil
}

// NewGeneratorFromEnv 从环境变量 MACHINE_INSTANCE_IDENTIFIER 读取实例编号并创建生成器
func NewGeneratorFromEnv(ctx context.Context) (*Generator, error) {
	return NewGenerator(ctx, &Options{})
}

// NewGeneratorFromConfig 从配置中读取启动选项
// 开启 watch 时调用方需要在 Generator 关闭之后再关闭 c
func NewGeneratorFromConfig(ctx context.Context, c *cfg.Config) (*Generator, error) {
	var options Options
	if err := c.ConvertTo(&options); err != nil {
		return nil, errors.WithMessage(err, "failed to convert options")
	}

	g, err := NewGenerator(ctx, &options)
	if err != nil {
		return nil, err
	}

	// 默认日志器是进程共享的，不跟随配置调整
	if options.Watch && options.Logger != nil {
		if err := g.watchLogLevel(c); err != nil {
			g.logger.ErrorContext(ctx, "failed to watch config", "error", err.Error())
			_ = g.Close()
			return nil, errors.WithMessage(err, "failed to watch config")
		}
	}
	return g, nil
}

func (g *Generator) watchLogLevel(c *cfg.Config) error {
	leveler, ok := g.logger.(interface{ SetLevel(level string) error })
	if !ok {
		return nil
	}

	c.Sub("logger.options.level").OnChange(func(s storage.Storage) error {
		var level string
		if err := s.ConvertTo(&level); err != nil {
			return err
		}
		if level == "" {
			return nil
		}
		if err := leveler.SetLevel(level); err != nil {
			return err
		}
		g.logger.Info("log level reloaded", "level", level)
		return nil
	})
	return c.Watch()
}

func (g *Generator) Next() int64 {
	return g.generator.Next()
}

// NextContext 启用追踪时 ctx 作为 span 的父上下文
func (g *Generator) NextContext(ctx context.Context) int64 {
	if observable, ok := g.generator.(*intgen.ObservableGenerator); ok {
		return observable.NextContext(ctx)
	}
	return g.generator.Next()
}

// NextString 以十进制字符串形式返回 ID
func (g *Generator) NextString() string {
	return strgen.FormatDecimal(g.Next())
}

func (g *Generator) Instance() int64 {
	return g.instance
}

// Lost 实例编号的租约丢失后返回 instance.ErrLeaseLost，此后生成的 ID 可能与其他进程冲突
func (g *Generator) Lost() error {
	if lease, ok := g.source.(interface{ Lost() error }); ok {
		return lease.Lost()
	}
	return nil
}

// Close 释放实例编号，多次调用只执行一次
func (g *Generator) Close() error {
	g.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := g.source.Release(ctx); err != nil {
			g.logger.Warn("failed to release instance identifier", "instance", g.instance, "error", err.Error())
			g.closeResult = errors.WithMessage(err, "failed to release instance identifier")
		}
		closeSource(g.source)
	})
	return g.closeResult
}

func closeSource(source instance.Source) {
	if closer, ok := source.(io.Closer); ok {
		_ = closer.Close()
	}
}
