package instance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestRedisSource(t *testing.T, mr *miniredis.Miniredis, owner string) *RedisSource {
	source, err := NewRedisSourceWithOptions(&RedisSourceOptions{
		Endpoint:      mr.Addr(),
		KeyPrefix:     "test:instance",
		Owner:         owner,
		TTL:           time.Second,
		RenewInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("创建 RedisSource 失败: %v", err)
	}
	t.Cleanup(func() { _ = source.Close() })
	return source
}

func TestRedisSource(t *testing.T) {
	Convey("RedisSource", t, func() {
		mr := miniredis.RunT(t)
		ctx := context.Background()

		Convey("获取最小的空闲编号并设置 TTL", func() {
			source := newTestRedisSource(t, mr, "owner-a")

			instance, err := source.Acquire(ctx)
			So(err, ShouldBeNil)
			So(instance, ShouldEqual, int64(0))

			value, err := mr.Get("test:instance:0")
			So(err, ShouldBeNil)
			So(value, ShouldEqual, "owner-a")
			So(mr.TTL("test:instance:0"), ShouldEqual, time.Second)

			Convey("重复获取返回同一个编号", func() {
				again, err := source.Acquire(ctx)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, instance)
			})
		})

		Convey("不同进程拿到不同编号", func() {
			So(mr.Set("test:instance:0", "someone"), ShouldBeNil)
			So(mr.Set("test:instance:1", "someone"), ShouldBeNil)

			a := newTestRedisSource(t, mr, "owner-a")
			b := newTestRedisSource(t, mr, "owner-b")

			ia, err := a.Acquire(ctx)
			So(err, ShouldBeNil)
			ib, err := b.Acquire(ctx)
			So(err, ShouldBeNil)
			So(ia, ShouldEqual, int64(2))
			So(ib, ShouldEqual, int64(3))
		})

		Convey("释放后编号可以被重新分配", func() {
			a := newTestRedisSource(t, mr, "owner-a")
			_, err := a.Acquire(ctx)
			So(err, ShouldBeNil)
			So(a.Release(ctx), ShouldBeNil)
			So(mr.Exists("test:instance:0"), ShouldBeFalse)

			b := newTestRedisSource(t, mr, "owner-b")
			instance, err := b.Acquire(ctx)
			So(err, ShouldBeNil)
			So(instance, ShouldEqual, int64(0))

			Convey("重复释放返回 nil", func() {
				So(a.Release(ctx), ShouldBeNil)
			})
		})

		Convey("租约过期后编号可以被重新分配", func() {
			source, err := NewRedisSourceWithOptions(&RedisSourceOptions{
				Endpoint:      mr.Addr(),
				KeyPrefix:     "test:instance",
				Owner:         "owner-a",
				TTL:           time.Minute,
				RenewInterval: 30 * time.Second,
			})
			So(err, ShouldBeNil)
			defer source.Close()

			_, err = source.Acquire(ctx)
			So(err, ShouldBeNil)
			mr.FastForward(time.Minute)

			b := newTestRedisSource(t, mr, "owner-b")
			instance, err := b.Acquire(ctx)
			So(err, ShouldBeNil)
			So(instance, ShouldEqual, int64(0))
		})

		Convey("所有编号都被占用时返回 ErrNoFreeInstance", func() {
			for i := 0; i <= MaxInstance; i++ {
				So(mr.Set(fmt.Sprintf("test:instance:%d", i), "someone"), ShouldBeNil)
			}

			source := newTestRedisSource(t, mr, "owner-a")
			_, err := source.Acquire(ctx)
			So(errors.Is(err, ErrNoFreeInstance), ShouldBeTrue)
		})

		Convey("租约被其他进程持有时报告 ErrLeaseLost", func() {
			source := newTestRedisSource(t, mr, "owner-a")
			_, err := source.Acquire(ctx)
			So(err, ShouldBeNil)
			So(source.Lost(), ShouldBeNil)

			So(mr.Set("test:instance:0", "intruder"), ShouldBeNil)

			deadline := time.Now().Add(2 * time.Second)
			for source.Lost() == nil && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			So(errors.Is(source.Lost(), ErrLeaseLost), ShouldBeTrue)

			// 不能删除其他进程的键
			So(errors.Is(source.Release(ctx), ErrLeaseLost), ShouldBeTrue)
			value, err := mr.Get("test:instance:0")
			So(err, ShouldBeNil)
			So(value, ShouldEqual, "intruder")
		})

		Convey("租约丢失后重新获取新的编号", func() {
			source := newTestRedisSource(t, mr, "owner-a")
			_, err := source.Acquire(ctx)
			So(err, ShouldBeNil)

			So(mr.Set("test:instance:0", "intruder"), ShouldBeNil)
			deadline := time.Now().Add(2 * time.Second)
			for source.Lost() == nil && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			So(errors.Is(source.Lost(), ErrLeaseLost), ShouldBeTrue)

			instance, err := source.Acquire(ctx)
			So(err, ShouldBeNil)
			So(instance, ShouldEqual, int64(1))
			So(source.Lost(), ShouldBeNil)

			value, err := mr.Get("test:instance:1")
			So(err, ShouldBeNil)
			So(value, ShouldEqual, source.Owner())
		})

		Convey("未指定 Owner 时自动生成", func() {
			source, err := NewRedisSourceWithOptions(&RedisSourceOptions{Endpoint: mr.Addr()})
			So(err, ShouldBeNil)
			defer source.Close()
			So(source.Owner(), ShouldNotBeEmpty)
			So(newTestRedisSource(t, mr, "owner-a").Owner(), ShouldEqual, "owner-a")
		})

		Convey("续约延长 TTL", func() {
			source := newTestRedisSource(t, mr, "owner-a")
			_, err := source.Acquire(ctx)
			So(err, ShouldBeNil)

			mr.FastForward(500 * time.Millisecond)

			deadline := time.Now().Add(2 * time.Second)
			for mr.TTL("test:instance:0") != time.Second && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			So(mr.TTL("test:instance:0"), ShouldEqual, time.Second)
		})

		Convey("Redis 不可用时返回错误", func() {
			source := newTestRedisSource(t, mr, "owner-a")
			mr.Close()
			_, err := source.Acquire(ctx)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("缺少地址时返回错误", t, func() {
		_, err := NewRedisSourceWithOptions(&RedisSourceOptions{})
		So(err, ShouldNotBeNil)
		_, err = NewRedisSourceWithOptions(nil)
		So(err, ShouldNotBeNil)
	})
}
