package provider

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

type FileProviderOptions struct {
	FilePath string `cfg:"filePath" validate:"required"`
}

// FileProvider 读取本地文件，Watch 之后文件写入会触发 OnChange 回调
type FileProvider struct {
	filePath string

	mu       sync.RWMutex
	onChange []func(data []byte) error
	watcher  *fsnotify.Watcher
	once     sync.Once
	done     chan struct{}
}

func NewFileProviderWithOptions(options *FileProviderOptions) (*FileProvider, error) {
	if options == nil || options.FilePath == "" {
		return nil, errors.New("file path is required")
	}

	absPath, err := filepath.Abs(options.FilePath)
	if err != nil {
		return nil, errors.Wrap(err, "invalid file path")
	}

	return &FileProvider{
		filePath: absPath,
		done:     make(chan struct{}),
	}, nil
}

func (p *FileProvider) Load() ([]byte, error) {
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return data, nil
}

func (p *FileProvider) OnChange(fn func(data []byte) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

func (p *FileProvider) Watch() error {
	var initErr error
	p.once.Do(func() {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			initErr = errors.Wrap(err, "failed to create file watcher")
			return
		}
		// 监听目录，编辑器保存文件时常常是先删除再创建
		if err := watcher.Add(filepath.Dir(p.filePath)); err != nil {
			watcher.Close()
			initErr = errors.Wrap(err, "failed to add directory to watcher")
			return
		}

		p.mu.Lock()
		p.watcher = watcher
		p.mu.Unlock()

		go p.loop(watcher)
	})
	return initErr
}

func (p *FileProvider) loop(watcher *fsnotify.Watcher) {
	for {
		select {
		case <-p.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.filePath || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(p.filePath)
			if err != nil {
				continue
			}

			p.mu.RLock()
			handlers := make([]func(data []byte) error, len(p.onChange))
			copy(handlers, p.onChange)
			p.mu.RUnlock()

			for _, handler := range handlers {
				_ = handler(data)
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
		close(p.done)
	}
	if p.watcher != nil {
		return errors.Wrap(p.watcher.Close(), "failed to close watcher")
	}
	return nil
}
