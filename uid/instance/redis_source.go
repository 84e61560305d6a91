package instance

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ZacharyGroff/kodawari/log"
	"github.com/ZacharyGroff/kodawari/log/logger"
	"github.com/ZacharyGroff/kodawari/ref"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisSourceOptions struct {
	// host:port 地址。
	Endpoint string `cfg:"endpoint" validate:"required"`

	// 使用指定的用户名来验证当前连接。
	Username string `cfg:"username"`

	// 可选密码。
	Password string `cfg:"password"`

	// 连接到服务器后选择的数据库。
	DB int `cfg:"db" def:"0"`

	// 建立新连接的拨号超时时间。
	DialTimeout time.Duration `cfg:"dialTimeout" def:"5s"`

	// KeyPrefix 租约键前缀，实例 n 的键为 <keyPrefix>:<n>
	KeyPrefix string `cfg:"keyPrefix" def:"kodawari:instance"`

	// Owner 租约持有者标识，为空时使用 hostname:pid:启动时间
	Owner string `cfg:"owner"`

	// TTL 租约过期时间，进程异常退出后最多 TTL 之后编号可以被重新分配
	TTL time.Duration `cfg:"ttl" def:"30s" validate:"gt=0"`

	// RenewInterval 续约间隔，必须小于 TTL
	RenewInterval time.Duration `cfg:"renewInterval" def:"10s" validate:"gt=0,ltfield=TTL"`

	Logger *ref.TypeOptions `cfg:"logger"`
}

// 只有持有者才能续约和释放
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisSource 通过 Redis 租约分配实例编号
// 依次尝试 SET NX PX <keyPrefix>:0 到 <keyPrefix>:1023，后台定期续约
type RedisSource struct {
	client        *redis.Client
	keyPrefix     string
	owner         string
	ttl           time.Duration
	renewInterval time.Duration
	logger        logger.Logger

	mu       sync.Mutex
	instance int64
	held     bool
	lostErr  error
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewRedisSourceWithOptions(options *RedisSourceOptions) (*RedisSource, error) {
	if options == nil || options.Endpoint == "" {
		return nil, errors.New("redis endpoint is required")
	}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}

	ttl := options.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	renewInterval := options.RenewInterval
	if renewInterval <= 0 || renewInterval >= ttl {
		renewInterval = ttl / 3
	}
	keyPrefix := options.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "kodawari:instance"
	}
	owner := options.Owner
	if owner == "" {
		hostname, _ := os.Hostname()
		owner = fmt.Sprintf("%s:%d:%d", hostname, os.Getpid(), time.Now().UnixNano())
	}

	client := redis.NewClient(&redis.Options{
		Addr:        options.Endpoint,
		Username:    options.Username,
		Password:    options.Password,
		DB:          options.DB,
		DialTimeout: options.DialTimeout,
	})

	return &RedisSource{
		client:        client,
		keyPrefix:     keyPrefix,
		owner:         owner,
		ttl:           ttl,
		renewInterval: renewInterval,
		logger:        l.WithGroup("redisSource"),
	}, nil
}

func (s *RedisSource) key(instance int64) string {
	return fmt.Sprintf("%s:%d", s.keyPrefix, instance)
}

// Owner 返回租约持有者标识
func (s *RedisSource) Owner() string {
	return s.owner
}

func (s *RedisSource) Acquire(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held {
		return s.instance, nil
	}

	for instance := int64(0); instance <= MaxInstance; instance++ {
		ok, err := s.client.SetNX(ctx, s.key(instance), s.owner, s.ttl).Result()
		if err != nil {
			return 0, errors.Wrapf(err, "redis SetNX %s failed", s.key(instance))
		}
		if !ok {
			continue
		}

		renewCtx, cancel := context.WithCancel(context.Background())
		s.instance = instance
		s.held = true
		s.lostErr = nil
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.renew(renewCtx, instance, s.done)

		s.logger.InfoContext(ctx, "instance lease acquired",
			"instance", instance,
			"owner", s.owner,
			"ttl", s.ttl.String(),
		)
		return instance, nil
	}

	return 0, errors.WithMessagef(ErrNoFreeInstance, "all %d slots under %s are leased", MaxInstance+1, s.keyPrefix)
}

func (s *RedisSource) renew(ctx context.Context, instance int64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		res, err := renewScript.Run(ctx, s.client, []string{s.key(instance)}, s.owner, s.ttl.Milliseconds()).Int64()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// 网络错误时继续重试，租约在 TTL 内仍然有效
			s.logger.Warn("instance lease renew failed", "instance", instance, "error", err.Error())
			continue
		}
		if res == 0 {
			// 丢失后不再持有编号，下一次 Acquire 重新申请
			s.mu.Lock()
			if s.held && s.done == done {
				s.lostErr = errors.WithMessagef(ErrLeaseLost, "instance %d", instance)
				s.held = false
				s.cancel()
			}
			s.mu.Unlock()
			s.logger.Error("instance lease lost, identifiers may collide",
				"instance", instance,
				"owner", s.owner,
			)
			return
		}
	}
}

// Lost 租约被其他进程持有或过期后返回 ErrLeaseLost，否则返回 nil
func (s *RedisSource) Lost() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lostErr
}

// Release 停止续约并删除租约，键已经不属于自己或者租约已经丢失时返回 ErrLeaseLost
func (s *RedisSource) Release(ctx context.Context) error {
	s.mu.Lock()
	if !s.held {
		lostErr := s.lostErr
		s.mu.Unlock()
		return lostErr
	}
	instance, cancel, done := s.instance, s.cancel, s.done
	s.held = false
	s.mu.Unlock()

	cancel()
	<-done

	res, err := releaseScript.Run(ctx, s.client, []string{s.key(instance)}, s.owner).Int64()
	if err != nil {
		return errors.Wrapf(err, "redis release %s failed", s.key(instance))
	}
	if res == 0 {
		return errors.WithMessagef(ErrLeaseLost, "instance %d", instance)
	}

	s.logger.InfoContext(ctx, "instance lease released", "instance", instance, "owner", s.owner)
	return nil
}

// Close 释放租约并关闭 Redis 连接
func (s *RedisSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	releaseErr := s.Release(ctx)
	if err := s.client.Close(); err != nil {
		return errors.Wrap(err, "redis client close failed")
	}
	return releaseErr
}
