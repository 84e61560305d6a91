package logger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ZacharyGroff/kodawari/log/writer"
	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
)

// SLogOptions 日志初始化选项
type SLogOptions struct {
	// 日志级别：debug, info, warn, error
	Level string `cfg:"level" validate:"omitempty,oneof=debug info warn error"`

	// 输出格式：text, json
	Format string `cfg:"format" validate:"omitempty,oneof=text json"`

	// 输出目标，为空时输出到 stdout
	Output *ref.TypeOptions `cfg:"output"`

	// 时间格式
	TimeFormat string `cfg:"timeFormat"`

	// 是否显示调用者信息
	AddSource bool `cfg:"addSource"`

	// 自定义字段，例如 service、instance
	Fields map[string]any `cfg:"fields"`
}

// SLog 基于 log/slog 的 Logger 实现
type SLog struct {
	slogger *slog.Logger
	writer  writer.Writer
	// 派生出的 Logger 共享同一个级别
	level *slog.LevelVar
}

func NewSLogWithOptions(options *SLogOptions) (*SLog, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}

	level := options.Level
	if level == "" {
		level = "info"
	}
	format := options.Format
	if format == "" {
		format = "text"
	}
	timeFormat := options.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	lvl, err := parseLevel(level)
	if err != nil {
		return nil, errors.WithMessage(err, "invalid log level")
	}

	w, err := newWriter(options.Output)
	if err != nil {
		return nil, err
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(lvl)

	handlerOpts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: options.AddSource,
	}
	if timeFormat != time.RFC3339 {
		handlerOpts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(a.Key, a.Value.Time().Format(timeFormat))
			}
			return a
		}
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	case "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	default:
		return nil, errors.Errorf("unsupported format: %s", format)
	}

	slogger := slog.New(handler)
	if len(options.Fields) > 0 {
		args := make([]any, 0, len(options.Fields)*2)
		for k, v := range options.Fields {
			args = append(args, k, v)
		}
		slogger = slogger.With(args...)
	}

	return &SLog{slogger: slogger, writer: w, level: levelVar}, nil
}

func newWriter(options *ref.TypeOptions) (writer.Writer, error) {
	if options == nil || options.Type == "" {
		w, err := writer.NewConsoleWriterWithOptions(&writer.ConsoleWriterOptions{Target: "stdout"})
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create default console writer")
		}
		return w, nil
	}

	obj, err := ref.New(options.Namespace, options.Type, options.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create writer")
	}
	w, ok := obj.(writer.Writer)
	if !ok {
		return nil, errors.Errorf("%T does not implement Writer interface", obj)
	}
	return w, nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown level: %s", level)
	}
}

func (l *SLog) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

func (l *SLog) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

func (l *SLog) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

func (l *SLog) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

func (l *SLog) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, args...)
}

func (l *SLog) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, args...)
}

func (l *SLog) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, args...)
}

func (l *SLog) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, args...)
}

func (l *SLog) With(args ...any) Logger {
	return &SLog{slogger: l.slogger.With(args...), writer: l.writer, level: l.level}
}

func (l *SLog) WithGroup(name string) Logger {
	return &SLog{slogger: l.slogger.WithGroup(name), writer: l.writer, level: l.level}
}

// SetLevel 运行时调整日志级别，用于配置热更新
func (l *SLog) SetLevel(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return errors.WithMessage(err, "invalid log level")
	}
	l.level.Set(lvl)
	return nil
}

func (l *SLog) Level() slog.Level {
	return l.level.Level()
}

// Close 关闭底层输出器，派生出的 Logger 共享同一个输出器
func (l *SLog) Close() error {
	return l.writer.Close()
}
