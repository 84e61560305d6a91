package cfg

import (
	"sync"

	"github.com/ZacharyGroff/kodawari/cfg/decoder"
	"github.com/ZacharyGroff/kodawari/cfg/provider"
	"github.com/ZacharyGroff/kodawari/cfg/storage"
	"github.com/ZacharyGroff/kodawari/log"
	"github.com/ZacharyGroff/kodawari/log/logger"
	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
)

// Options 配置类初始化选项
type Options struct {
	Provider ref.TypeOptions  `cfg:"provider"`
	Decoder  ref.TypeOptions  `cfg:"decoder"`
	Logger   *ref.TypeOptions `cfg:"logger"`
}

// Config 配置管理器
// 提供配置数据的统一访问入口和变更监听功能
type Config struct {
	root   *Config
	prefix string

	// 只有根配置才使用这些字段
	provider provider.Provider
	decoder  decoder.Decoder
	logger   logger.Logger

	mu       sync.RWMutex
	storage  storage.Storage
	handlers map[string][]func(storage.Storage) error

	closeOnce   sync.Once
	closeResult error
}

// NewConfigWithOptions 根据选项创建配置对象
func NewConfigWithOptions(options *Options) (*Config, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}

	prov, err := provider.NewProviderWithOptions(&options.Provider)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create provider")
	}
	dec, err := decoder.NewDecoderWithOptions(&options.Decoder)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create decoder")
	}
	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}

	data, err := prov.Load()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load data from provider")
	}
	stor, err := dec.Decode(data)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to decode data")
	}

	c := &Config{
		provider: prov,
		decoder:  dec,
		logger:   l,
		storage:  storage.NewValidateStorage(stor),
		handlers: map[string][]func(storage.Storage) error{},
	}
	c.root = c
	return c, nil
}

// Sub 获取子配置对象，key 为空时返回自身
func (c *Config) Sub(key string) *Config {
	if key == "" {
		return c
	}
	prefix := key
	if c.prefix != "" {
		prefix = c.prefix + "." + key
	}
	return &Config{root: c.root, prefix: prefix}
}

// ConvertTo 将配置数据转成结构体或者 map/slice 等任意结构
// 转换前填充 def 默认值，转换后按 validate 标签校验
func (c *Config) ConvertTo(object any) error {
	return c.current().ConvertTo(object)
}

func (c *Config) current() storage.Storage {
	c.root.mu.RLock()
	defer c.root.mu.RUnlock()
	return c.root.storage.Sub(c.prefix)
}

// OnChange 注册配置变更回调，回调参数为当前子配置的存储
// 只有调用 Watch 之后回调才会被触发
func (c *Config) OnChange(fn func(storage.Storage) error) {
	c.root.mu.Lock()
	defer c.root.mu.Unlock()
	c.root.handlers[c.prefix] = append(c.root.handlers[c.prefix], fn)
}

// Watch 启动配置变更监听，对于不支持监听的 Provider 静默处理
func (c *Config) Watch() error {
	root := c.root
	root.provider.OnChange(root.reload)
	if err := root.provider.Watch(); err != nil {
		return errors.WithMessage(err, "failed to watch provider")
	}
	return nil
}

func (c *Config) reload(data []byte) error {
	stor, err := c.decoder.Decode(data)
	if err != nil {
		c.logger.Warn("config reload skipped", "error", err.Error())
		return errors.WithMessage(err, "failed to decode data")
	}

	c.mu.Lock()
	c.storage = storage.NewValidateStorage(stor)
	handlers := make(map[string][]func(storage.Storage) error, len(c.handlers))
	for key, fns := range c.handlers {
		handlers[key] = append([]func(storage.Storage) error{}, fns...)
	}
	current := c.storage
	c.mu.Unlock()

	for key, fns := range handlers {
		for _, fn := range fns {
			if err := fn(current.Sub(key)); err != nil {
				c.logger.Warn("config change handler failed", "key", key, "error", err.Error())
			}
		}
	}
	return nil
}

// Close 关闭配置对象，子配置会转发到根配置，多次调用只执行一次
func (c *Config) Close() error {
	root := c.root
	root.closeOnce.Do(func() {
		root.closeResult = root.provider.Close()
	})
	return root.closeResult
}
