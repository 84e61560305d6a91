package storage

import (
	"testing"
	"time"

	"github.com/ZacharyGroff/kodawari/ref"
	. "github.com/smartystreets/goconvey/convey"
)

type leaseOptions struct {
	Addr          string        `cfg:"addr" def:"localhost:6379"`
	TTL           time.Duration `cfg:"ttl" def:"30s"`
	RenewInterval time.Duration `cfg:"renewInterval"`
}

type bootstrapOptions struct {
	MachineInstanceIdentifier *int64            `cfg:"machineInstanceIdentifier"`
	Name                      string            `cfg:"name" def:"uid" validate:"required"`
	Locked                    bool              `cfg:"locked"`
	Instance                  ref.TypeOptions   `cfg:"instance"`
	Lease                     *leaseOptions     `cfg:"lease"`
	Tags                      []string          `cfg:"tags"`
	Labels                    map[string]string `cfg:"labels"`
	Ignored                   string            `cfg:"-"`
}

func TestMapStorage(t *testing.T) {
	Convey("MapStorage", t, func() {
		data := map[string]any{
			"machineInstanceIdentifier": 42,
			"locked":                    true,
			"instance": map[string]any{
				"namespace": "github.com/ZacharyGroff/kodawari/uid/instance",
				"type":      "RedisSource",
				"options":   map[string]any{"addr": "redis:6379", "ttl": "10s"},
			},
			"lease":   map[string]any{"renewInterval": "2s"},
			"tags":    []any{"recipe", "user"},
			"labels":  map[string]any{"zone": "a"},
			"Ignored": "x",
		}
		s := NewValidateStorage(NewMapStorage(data))

		Convey("转换为结构体", func() {
			var options bootstrapOptions
			So(s.ConvertTo(&options), ShouldBeNil)
			So(*options.MachineInstanceIdentifier, ShouldEqual, int64(42))
			So(options.Name, ShouldEqual, "uid")
			So(options.Locked, ShouldBeTrue)
			So(options.Instance.Type, ShouldEqual, "RedisSource")
			So(options.Lease.Addr, ShouldEqual, "localhost:6379")
			So(options.Lease.TTL, ShouldEqual, 30*time.Second)
			So(options.Lease.RenewInterval, ShouldEqual, 2*time.Second)
			So(options.Tags, ShouldResemble, []string{"recipe", "user"})
			So(options.Labels, ShouldResemble, map[string]string{"zone": "a"})
			So(options.Ignored, ShouldBeEmpty)
		})

		Convey("TypeOptions.Options 保留为可转换的子存储", func() {
			var options bootstrapOptions
			So(s.ConvertTo(&options), ShouldBeNil)
			convertable, ok := options.Instance.Options.(ref.Convertable)
			So(ok, ShouldBeTrue)

			var lease leaseOptions
			So(convertable.ConvertTo(&lease), ShouldBeNil)
			So(lease.Addr, ShouldEqual, "redis:6379")
			So(lease.TTL, ShouldEqual, 10*time.Second)
		})

		Convey("Sub 获取子配置", func() {
			var ttl time.Duration
			So(s.Sub("instance.options.ttl").ConvertTo(&ttl), ShouldBeNil)
			So(ttl, ShouldEqual, 10*time.Second)

			var tag string
			So(s.Sub("tags[1]").ConvertTo(&tag), ShouldBeNil)
			So(tag, ShouldEqual, "user")

			var missing *int64
			So(s.Sub("not.exists").ConvertTo(&missing), ShouldBeNil)
			So(missing, ShouldBeNil)
		})

		Convey("类型不匹配返回错误", func() {
			var options bootstrapOptions
			err := NewMapStorage(map[string]any{"locked": "maybe"}).ConvertTo(&options)
			So(err, ShouldNotBeNil)
		})

		Convey("校验失败返回错误", func() {
			type strict struct {
				Instance int64 `cfg:"instance" validate:"min=0,max=1023"`
			}
			var options strict
			err := NewValidateStorage(NewMapStorage(map[string]any{"instance": 1024})).ConvertTo(&options)
			So(err, ShouldNotBeNil)
		})

		Convey("非指针返回错误", func() {
			var options bootstrapOptions
			So(NewMapStorage(data).ConvertTo(options), ShouldNotBeNil)
		})
	})
}

func TestFlatStorage(t *testing.T) {
	Convey("FlatStorage", t, func() {
		data := map[string]any{
			"MACHINE_INSTANCE_IDENTIFIER": "7",
			"LOCKED":                      "true",
			"INSTANCE_TYPE":               "ConfigSource",
			"INSTANCE_OPTIONS_TTL":        "5s",
			"LEASE_ADDR":                  "redis:6379",
			"TAGS_0":                      "recipe",
			"TAGS_1":                      "user",
			"LABELS_ZONE":                 "a",
		}
		s := NewValidateStorage(NewFlatStorage(data).WithSeparator("_").WithUppercase(true))

		Convey("驼峰字段映射为大写下划线 key", func() {
			var options bootstrapOptions
			So(s.ConvertTo(&options), ShouldBeNil)
			So(*options.MachineInstanceIdentifier, ShouldEqual, int64(7))
			So(options.Locked, ShouldBeTrue)
			So(options.Instance.Type, ShouldEqual, "ConfigSource")
			So(options.Lease.Addr, ShouldEqual, "redis:6379")
			So(options.Lease.TTL, ShouldEqual, 30*time.Second)
			So(options.Tags, ShouldResemble, []string{"recipe", "user"})
			So(options.Labels, ShouldResemble, map[string]string{"ZONE": "a"})

			var lease leaseOptions
			So(options.Instance.Options.(ref.Convertable).ConvertTo(&lease), ShouldBeNil)
			So(lease.TTL, ShouldEqual, 5*time.Second)
		})

		Convey("缺失的指针字段保持 nil", func() {
			var options bootstrapOptions
			So(NewFlatStorage(map[string]any{}).ConvertTo(&options), ShouldBeNil)
			So(options.MachineInstanceIdentifier, ShouldBeNil)
			So(options.Lease, ShouldBeNil)
		})

		Convey("Sub 读取单个值", func() {
			var instance *int64
			So(s.Sub("machineInstanceIdentifier").ConvertTo(&instance), ShouldBeNil)
			So(*instance, ShouldEqual, int64(7))
		})

		Convey("非数字的值返回错误", func() {
			var instance *int64
			flat := NewFlatStorage(map[string]any{"MACHINE_INSTANCE_IDENTIFIER": "not int"}).WithSeparator("_").WithUppercase(true)
			So(flat.Sub("machineInstanceIdentifier").ConvertTo(&instance), ShouldNotBeNil)
		})

		Convey("同名前缀的其他 key 不代表基本类型字段存在", func() {
			flat := NewFlatStorage(map[string]any{"MACHINE_INSTANCE_IDENTIFIER_BACKUP": "3"}).WithSeparator("_").WithUppercase(true)
			var value *string
			So(flat.Sub("machineInstanceIdentifier").ConvertTo(&value), ShouldBeNil)
			So(value, ShouldBeNil)

			var options bootstrapOptions
			So(flat.ConvertTo(&options), ShouldBeNil)
			So(options.MachineInstanceIdentifier, ShouldBeNil)
		})

		Convey("命令行风格的小写中划线 key", func() {
			flat := NewValidateStorage(NewFlatStorage(map[string]any{
				"machine-instance-identifier": "9",
				"lease-renew-interval":        "2s",
				"tags-0":                      "recipe",
			}).WithSeparator("-").WithKebab(true))

			var options bootstrapOptions
			So(flat.ConvertTo(&options), ShouldBeNil)
			So(*options.MachineInstanceIdentifier, ShouldEqual, int64(9))
			So(options.Lease.RenewInterval, ShouldEqual, 2*time.Second)
			So(options.Lease.Addr, ShouldEqual, "localhost:6379")
			So(options.Tags, ShouldResemble, []string{"recipe"})
		})
	})
}

func TestToUpperSnake(t *testing.T) {
	Convey("toUpperSnake", t, func() {
		So(toUpperSnake("machineInstanceIdentifier"), ShouldEqual, "MACHINE_INSTANCE_IDENTIFIER")
		So(toUpperSnake("overflowWait"), ShouldEqual, "OVERFLOW_WAIT")
		So(toUpperSnake("TTL"), ShouldEqual, "TTL")
		So(toUpperSnake("HTTPServer"), ShouldEqual, "HTTP_SERVER")
		So(toUpperSnake("KAFKA_BROKER_NAME"), ShouldEqual, "KAFKA_BROKER_NAME")
		So(toUpperSnake("0"), ShouldEqual, "0")
		So(toLowerKebab("machineInstanceIdentifier"), ShouldEqual, "machine-instance-identifier")
		So(toLowerKebab("TTL"), ShouldEqual, "ttl")
		So(toLowerKebab("count"), ShouldEqual, "count")
	})
}

func TestSetDefaults(t *testing.T) {
	Convey("SetDefaults", t, func() {
		Convey("只设置零值字段", func() {
			options := &leaseOptions{Addr: "custom:6379"}
			So(SetDefaults(options), ShouldBeNil)
			So(options.Addr, ShouldEqual, "custom:6379")
			So(options.TTL, ShouldEqual, 30*time.Second)
		})

		Convey("非法默认值返回错误", func() {
			type broken struct {
				Wait time.Duration `def:"soon"`
			}
			So(SetDefaults(&broken{}), ShouldNotBeNil)
		})

		Convey("非指针返回错误", func() {
			So(SetDefaults(leaseOptions{}), ShouldNotBeNil)
		})
	})
}
