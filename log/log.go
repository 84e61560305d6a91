package log

import (
	"github.com/ZacharyGroff/kodawari/log/logger"
	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
)

var defaultLogger logger.Logger

func init() {
	// 默认向终端输出 text 格式日志
	slog, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = slog
}

func Default() logger.Logger {
	return defaultLogger
}

// NewLoggerWithOptions 通过 ref 创建日志器，options 为空时返回默认日志器
func NewLoggerWithOptions(options *ref.TypeOptions) (logger.Logger, error) {
	if options == nil || options.Type == "" {
		return defaultLogger, nil
	}

	obj, err := ref.New(options.Namespace, options.Type, options.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.New failed")
	}
	l, ok := obj.(logger.Logger)
	if !ok {
		return nil, errors.Errorf("%T does not implement Logger interface", obj)
	}
	return l, nil
}
