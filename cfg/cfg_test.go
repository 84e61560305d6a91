package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZacharyGroff/kodawari/cfg/storage"
	. "github.com/smartystreets/goconvey/convey"
)

type generatorOptions struct {
	Instance     int64         `cfg:"instance" validate:"gte=0,lte=1023"`
	OverflowWait time.Duration `cfg:"overflowWait" def:"1s"`
}

type bootstrapOptions struct {
	Generator generatorOptions `cfg:"generator"`
	Locked    bool             `cfg:"locked"`
}

func writeFile(t *testing.T, name string, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
	return path
}

func TestNewConfig(t *testing.T) {
	Convey("从 yaml 文件读取配置", t, func() {
		path := writeFile(t, "kodawari.yaml", "generator:\n  instance: 42\nlocked: true\n")
		c, err := NewConfig(path)
		So(err, ShouldBeNil)
		defer c.Close()

		var options bootstrapOptions
		So(c.ConvertTo(&options), ShouldBeNil)
		So(options.Generator.Instance, ShouldEqual, int64(42))
		So(options.Generator.OverflowWait, ShouldEqual, time.Second)
		So(options.Locked, ShouldBeTrue)

		Convey("Sub 获取子配置", func() {
			var instance int64
			So(c.Sub("generator").Sub("instance").ConvertTo(&instance), ShouldBeNil)
			So(instance, ShouldEqual, int64(42))
			So(c.Sub(""), ShouldPointTo, c)
		})
	})

	Convey("校验失败返回错误", t, func() {
		path := writeFile(t, "kodawari.json", `{"generator": {"instance": 1024}}`)
		c, err := NewConfig(path)
		So(err, ShouldBeNil)
		defer c.Close()

		var options bootstrapOptions
		So(c.ConvertTo(&options), ShouldNotBeNil)
	})

	Convey("按扩展名选择解码器", t, func() {
		for _, name := range []string{"a.json", "a.yaml", "a.yml", "a.toml", "a.ini", ".env", ".env.local"} {
			_, err := decoderTypeFor(name)
			So(err, ShouldBeNil)
		}
		_, err := decoderTypeFor("a.xml")
		So(err, ShouldNotBeNil)

		_, err = NewConfig("")
		So(err, ShouldNotBeNil)
	})

	Convey("文件不存在返回错误", t, func() {
		_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})
}

func TestNewEnvConfig(t *testing.T) {
	t.Setenv("KODAWARI_CFG_MACHINE_INSTANCE_IDENTIFIER", "7")
	t.Setenv("KODAWARI_CFG_GENERATOR_OVERFLOW_WAIT", "250ms")

	Convey("环境变量按 UPPER_SNAKE 映射到配置", t, func() {
		c, err := NewEnvConfig("KODAWARI_CFG_")
		So(err, ShouldBeNil)
		defer c.Close()

		var options struct {
			MachineInstanceIdentifier *int64           `cfg:"machineInstanceIdentifier"`
			Generator                 generatorOptions `cfg:"generator"`
		}
		So(c.ConvertTo(&options), ShouldBeNil)
		So(options.MachineInstanceIdentifier, ShouldNotBeNil)
		So(*options.MachineInstanceIdentifier, ShouldEqual, int64(7))
		So(options.Generator.OverflowWait, ShouldEqual, 250*time.Millisecond)
	})

	Convey("env 文件覆盖系统环境变量", t, func() {
		path := writeFile(t, ".env", "KODAWARI_CFG_MACHINE_INSTANCE_IDENTIFIER=9\n")
		c, err := NewEnvConfig("KODAWARI_CFG_", path)
		So(err, ShouldBeNil)
		defer c.Close()

		var instance int64
		So(c.Sub("machineInstanceIdentifier").ConvertTo(&instance), ShouldBeNil)
		So(instance, ShouldEqual, int64(9))
	})
}

func TestNewCmdConfig(t *testing.T) {
	Convey("命令行参数按小写中划线映射到配置", t, func() {
		c, err := NewCmdConfig("", "--machine-instance-identifier", "5", "--generator-overflow-wait=2ms", "--locked")
		So(err, ShouldBeNil)
		defer c.Close()

		var options struct {
			MachineInstanceIdentifier *int64           `cfg:"machineInstanceIdentifier"`
			Generator                 generatorOptions `cfg:"generator"`
			Locked                    bool             `cfg:"locked"`
		}
		So(c.ConvertTo(&options), ShouldBeNil)
		So(*options.MachineInstanceIdentifier, ShouldEqual, int64(5))
		So(options.Generator.OverflowWait, ShouldEqual, 2*time.Millisecond)
		So(options.Locked, ShouldBeTrue)
	})

	Convey("前缀过滤", t, func() {
		c, err := NewCmdConfig("uid-", "--uid-generator-instance=3", "--generator-instance=4")
		So(err, ShouldBeNil)
		defer c.Close()

		var instance int64
		So(c.Sub("generator.instance").ConvertTo(&instance), ShouldBeNil)
		So(instance, ShouldEqual, int64(3))
	})
}

func TestConfigWatch(t *testing.T) {
	Convey("文件变更后重新加载并触发回调", t, func() {
		path := writeFile(t, "kodawari.yaml", "generator:\n  instance: 1\n")
		c, err := NewConfig(path)
		So(err, ShouldBeNil)
		defer c.Close()

		changed := make(chan int64, 8)
		c.Sub("generator").OnChange(func(s storage.Storage) error {
			var options generatorOptions
			if err := s.ConvertTo(&options); err != nil {
				return err
			}
			select {
			case changed <- options.Instance:
			default:
			}
			return nil
		})
		So(c.Watch(), ShouldBeNil)

		time.Sleep(100 * time.Millisecond)
		So(os.WriteFile(path, []byte("generator:\n  instance: 2\n"), 0644), ShouldBeNil)

		var got int64
		timeout := time.After(2 * time.Second)
	loop:
		for {
			select {
			case got = <-changed:
				if got == 2 {
					break loop
				}
			case <-timeout:
				break loop
			}
		}
		So(got, ShouldEqual, int64(2))

		var instance int64
		So(c.Sub("generator.instance").ConvertTo(&instance), ShouldBeNil)
		So(instance, ShouldEqual, int64(2))
	})

	Convey("重复关闭只执行一次", t, func() {
		path := writeFile(t, "kodawari.toml", "locked = true\n")
		c, err := NewConfig(path)
		So(err, ShouldBeNil)
		So(c.Close(), ShouldBeNil)
		So(c.Sub("locked").Close(), ShouldBeNil)
	})
}
