package provider

import (
	"strings"
	"testing"
)

func TestCmdProvider_Load(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		args   []string
		want   string
	}{
		{
			name: "key value and equals",
			args: []string{"--machine-instance-identifier", "42", "--overflow-wait=1ms"},
			want: "machine-instance-identifier=42\noverflow-wait=1ms\n",
		},
		{
			name: "boolean flag",
			args: []string{"--locked", "--count", "3"},
			want: "count=3\nlocked=true\n",
		},
		{
			name: "short options and positional args are ignored",
			args: []string{"-v", "positional", "--count=2"},
			want: "count=2\n",
		},
		{
			name: "stops at double dash",
			args: []string{"--count=2", "--", "--locked"},
			want: "count=2\n",
		},
		{
			name:   "prefix filter",
			prefix: "uid-",
			args:   []string{"--uid-machine-instance-identifier=7", "--count=2"},
			want:   "machine-instance-identifier=7\n",
		},
		{
			name: "empty",
			args: []string{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewCmdProviderWithOptions(&CmdProviderOptions{Prefix: tt.prefix, Args: tt.args})
			if err != nil {
				t.Fatalf("创建 CmdProvider 失败: %v", err)
			}
			data, err := provider.Load()
			if err != nil {
				t.Fatalf("读取命令行参数失败: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Load() = %q, want %q", string(data), tt.want)
			}
		})
	}
}

func TestCmdProvider_LongValue(t *testing.T) {
	blob := strings.Repeat("x", 70*1024)
	provider, err := NewCmdProviderWithOptions(&CmdProviderOptions{Args: []string{"--certificate", blob}})
	if err != nil {
		t.Fatalf("创建 CmdProvider 失败: %v", err)
	}
	data, err := provider.Load()
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if string(data) != "certificate="+blob+"\n" {
		t.Errorf("超长参数应该被完整保留, 实际长度 %d", len(data))
	}
}
