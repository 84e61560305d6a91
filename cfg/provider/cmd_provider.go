package provider

import (
	"os"
	"sort"
	"strings"
)

type CmdProviderOptions struct {
	// Prefix 参数前缀过滤，如 "uid-" 只处理 --uid-* 参数，处理时直接移除前缀
	Prefix string `cfg:"prefix"`
	// Args 为空时读取 os.Args[1:]
	Args []string `cfg:"args"`
}

// CmdProvider 以 key=value 行输出 --key value 和 --key=value 形式的命令行参数，交给 CmdDecoder 解码
type CmdProvider struct {
	prefix string
	args   []string
}

func NewCmdProviderWithOptions(options *CmdProviderOptions) (*CmdProvider, error) {
	if options == nil {
		options = &CmdProviderOptions{}
	}

	return &CmdProvider{
		prefix: options.Prefix,
		args:   options.Args,
	}, nil
}

func (p *CmdProvider) Load() ([]byte, error) {
	args := p.args
	if args == nil {
		args = os.Args[1:]
	}

	cmdVars := make(map[string]string)
	for i := 0; i < len(args); i++ {
		// 只处理以 -- 开头的长选项，-- 本身表示参数结束
		arg := args[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "--") {
			continue
		}

		key := arg[2:]
		if p.prefix != "" {
			if !strings.HasPrefix(key, p.prefix) {
				continue
			}
			key = key[len(p.prefix):]
		}

		var value string
		if k, v, ok := strings.Cut(key, "="); ok {
			key, value = k, v
		} else if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			i++
			value = args[i]
		} else {
			// 没有值时作为布尔标志
			value = "true"
		}

		if key == "" || strings.ContainsAny(value, "\r\n") {
			continue
		}
		cmdVars[key] = value
	}

	keys := make([]string, 0, len(cmdVars))
	for key := range cmdVars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(cmdVars[key])
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

// OnChange 命令行参数是静态的，不支持变更监听
func (p *CmdProvider) OnChange(fn func(data []byte) error) {}

func (p *CmdProvider) Watch() error {
	return nil
}

func (p *CmdProvider) Close() error {
	return nil
}
