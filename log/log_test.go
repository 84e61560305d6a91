package log

import (
	"path/filepath"
	"testing"

	"github.com/ZacharyGroff/kodawari/log/logger"
	"github.com/ZacharyGroff/kodawari/log/writer"
	"github.com/ZacharyGroff/kodawari/ref"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewLoggerWithOptions(t *testing.T) {
	Convey("NewLoggerWithOptions", t, func() {
		Convey("nil options 返回默认日志器", func() {
			l, err := NewLoggerWithOptions(nil)
			So(err, ShouldBeNil)
			So(l, ShouldEqual, Default())
		})

		Convey("通过 ref 创建 SLog", func() {
			l, err := NewLoggerWithOptions(&ref.TypeOptions{
				Namespace: "github.com/ZacharyGroff/kodawari/log/logger",
				Type:      "SLog",
				Options: &logger.SLogOptions{
					Level:  "debug",
					Format: "json",
					Output: &ref.TypeOptions{
						Namespace: "github.com/ZacharyGroff/kodawari/log/writer",
						Type:      "FileWriter",
						Options:   &writer.FileWriterOptions{Path: filepath.Join(t.TempDir(), "uid.log")},
					},
				},
			})
			So(err, ShouldBeNil)
			So(l, ShouldNotBeNil)
			l.Info("generator ready", "instance", 1)
		})

		Convey("未注册的类型返回错误", func() {
			_, err := NewLoggerWithOptions(&ref.TypeOptions{Namespace: "unknown", Type: "Logger"})
			So(err, ShouldNotBeNil)
		})

		Convey("非 Logger 类型返回错误", func() {
			_, err := NewLoggerWithOptions(&ref.TypeOptions{
				Namespace: "github.com/ZacharyGroff/kodawari/log/writer",
				Type:      "ConsoleWriter",
			})
			So(err, ShouldNotBeNil)
		})
	})
}
