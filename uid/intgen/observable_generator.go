package intgen

import (
	"context"
	"fmt"
	"time"

	"github.com/ZacharyGroff/kodawari/log"
	"github.com/ZacharyGroff/kodawari/log/logger"
	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ObservableOptions struct {
	// Generator 被包装的底层生成器配置
	Generator *ref.TypeOptions `cfg:"generator" validate:"required"`

	// Logger 日志记录器配置，为空时使用默认日志器
	Logger *ref.TypeOptions `cfg:"logger"`

	// EnableMetrics 是否启用指标收集
	EnableMetrics bool `cfg:"enableMetrics" def:"true"`

	// EnableLogging 是否启用日志记录，每个 ID 记一条 debug 日志，溢出等待记 warn 日志
	EnableLogging bool `cfg:"enableLogging" def:"false"`

	// EnableTracing 是否启用分布式追踪
	EnableTracing bool `cfg:"enableTracing" def:"false"`

	// Name 组件名称标识，用于所有观测维度
	// - Metrics: 作为指标名前缀
	// - Logging: 作为 component 字段值
	// - Tracing: 作为 span 的 component 属性
	Name string `cfg:"name" def:"uid"`

	// Registerer 指标注册器，为空时使用 prometheus 默认注册器
	Registerer prometheus.Registerer `cfg:"-"`
}

// ObservableMetrics 封装 prometheus 指标
type ObservableMetrics struct {
	idsTotal           prometheus.Counter
	nextDuration       prometheus.Histogram
	overflowWaitsTotal prometheus.Counter
}

// NewObservableMetrics 创建并注册指标收集器，同名指标已注册时复用已有的收集器
func NewObservableMetrics(name string, registerer prometheus.Registerer) (*ObservableMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	idsTotal, err := registerCollector(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Name: name + "_ids_total",
		Help: "Total number of identifiers issued",
	}))
	if err != nil {
		return nil, err
	}
	nextDuration, err := registerCollector(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name + "_next_duration_seconds",
		Help:    "Duration of identifier generation in seconds",
		Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0, 5.0},
	}))
	if err != nil {
		return nil, err
	}
	overflowWaitsTotal, err := registerCollector(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Name: name + "_overflow_waits_total",
		Help: "Total number of waits caused by sequence exhaustion",
	}))
	if err != nil {
		return nil, err
	}

	return &ObservableMetrics{
		idsTotal:           idsTotal,
		nextDuration:       nextDuration,
		overflowWaitsTotal: overflowWaitsTotal,
	}, nil
}

func registerCollector[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	if err := registerer.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, errors.Wrap(err, "failed to register collector")
	}
	return collector, nil
}

// ObservableGenerator 装饰器，为任何 IntGenerator 添加观测能力
type ObservableGenerator struct {
	generator IntGenerator

	logger        logger.Logger
	metrics       *ObservableMetrics
	tracer        trace.Tracer
	name          string
	enableMetrics bool
	enableLogging bool
	enableTracing bool
}

func NewObservableGeneratorWithOptions(options *ObservableOptions) (*ObservableGenerator, error) {
	if options == nil || options.Generator == nil {
		return nil, errors.New("generator options is required")
	}

	generator, err := NewIntGeneratorWithOptions(options.Generator)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create underlying generator")
	}
	return NewObservableGenerator(generator, options)
}

// NewObservableGenerator 包装已有的生成器，options 中的 Generator 字段被忽略
func NewObservableGenerator(generator IntGenerator, options *ObservableOptions) (*ObservableGenerator, error) {
	if generator == nil {
		return nil, errors.New("generator is nil")
	}
	if options == nil {
		options = &ObservableOptions{EnableMetrics: true}
	}

	name := options.Name
	if name == "" {
		name = "uid"
	}

	obs := &ObservableGenerator{
		generator:     generator,
		name:          name,
		enableMetrics: options.EnableMetrics,
		enableLogging: options.EnableLogging,
		enableTracing: options.EnableTracing,
	}

	// 创建 logger（可选）
	if options.EnableLogging {
		l, err := log.NewLoggerWithOptions(options.Logger)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create logger")
		}
		obs.logger = l.WithGroup("observableGenerator")
	}

	// 创建 metrics（可选）
	if options.EnableMetrics {
		metrics, err := NewObservableMetrics(name, options.Registerer)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create metrics")
		}
		obs.metrics = metrics
	}

	// 创建 tracer（可选）
	if options.EnableTracing {
		obs.tracer = otel.Tracer(fmt.Sprintf("uid.%s", name))
	}

	if notifier, ok := generator.(OverflowNotifier); ok && (obs.metrics != nil || obs.logger != nil) {
		notifier.SetOverflowHook(obs.onOverflow)
	}

	return obs, nil
}

func (obs *ObservableGenerator) onOverflow(relativeTimestamp int64) {
	if obs.metrics != nil {
		obs.metrics.overflowWaitsTotal.Inc()
	}
	if obs.logger != nil {
		obs.logger.Warn("sequence exhausted, waiting for next millisecond",
			"component", obs.name,
			"timestamp", relativeTimestamp+Epoch,
		)
	}
}

func (obs *ObservableGenerator) Next() int64 {
	return obs.NextContext(context.Background())
}

// NextContext 生成 ID 并记录 span，ctx 只用于追踪和日志，不会中断溢出等待
func (obs *ObservableGenerator) NextContext(ctx context.Context) int64 {
	start := time.Now()

	// 创建 tracing span
	var span trace.Span
	if obs.enableTracing && obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, "uid.next",
			trace.WithAttributes(attribute.String("component", obs.name)),
		)
		defer span.End()
	}

	id := obs.generator.Next()
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(
			attribute.Int64("uid.id", id),
			attribute.Int64("uid.instance", Instance(id)),
			attribute.Int64("uid.sequence", Sequence(id)),
			attribute.Int64("duration_us", duration.Microseconds()),
		)
	}

	// 记录指标
	if obs.metrics != nil {
		obs.metrics.idsTotal.Inc()
		obs.metrics.nextDuration.Observe(duration.Seconds())
	}

	// 记录日志
	if obs.logger != nil {
		obs.logger.DebugContext(ctx, "identifier issued",
			"component", obs.name,
			"id", id,
			"duration_us", duration.Microseconds(),
		)
	}

	return id
}
