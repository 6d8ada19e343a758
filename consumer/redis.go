package consumer

import (
  "context"
  "fmt"
  "strconv"

  "github.com/go-redis/redis/v8"
  "github.com/robertof/go-vitals-collector/device"
  "github.com/rs/zerolog"
)

const (
  defaultStream = "vitals:readings"
  defaultStreamMaxLen = 10000
)

// Redis appends every reading as an entry of a Redis stream.
type Redis struct {
  client *redis.Client
  stream string
  maxLen int64
}

func NewRedis(cfg device.Config, logger zerolog.Logger) (Consumer, error) {
  addr := cfg.Setting("redis.addr")

  if addr == "" {
    return nil, fmt.Errorf("%w: [REDIS] addr is required", device.ErrConfiguration)
  }

  db, err := strconv.Atoi(cfg.SettingOr("redis.db", "0"))
  if err != nil {
    return nil, fmt.Errorf("%w: [REDIS] invalid db: %v", device.ErrConfiguration, err)
  }

  maxLen, err := strconv.ParseInt(cfg.SettingOr("redis.maxlen", strconv.Itoa(defaultStreamMaxLen)), 10, 64)
  if err != nil || maxLen < 0 {
    return nil, fmt.Errorf("%w: [REDIS] invalid maxlen", device.ErrConfiguration)
  }

  client := redis.NewClient(&redis.Options{
    Addr: addr,
    Password: cfg.Setting("redis.password"),
    DB: db,
  })

  logger.Debug().Str("Addr", addr).Int("DB", db).Msg("Created Redis client")

  return newRedis(client, cfg.SettingOr("redis.stream", defaultStream), maxLen), nil
}

func newRedis(client *redis.Client, stream string, maxLen int64) *Redis {
  return &Redis{
    client: client,
    stream: stream,
    maxLen: maxLen,
  }
}

func (r *Redis) Execute(ctx context.Context, cfg device.Config, readings device.ReadingSet) error {
  _, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
    for _, reading := range readings {
      values := newReadingPayload(reading).fields()
      values["device"] = cfg.Name
      values["type"] = cfg.Type

      args := &redis.XAddArgs{
        Stream: r.stream,
        Values: values,
      }

      if r.maxLen > 0 {
        args.MaxLen = r.maxLen
        args.Approx = true
      }

      pipe.XAdd(ctx, args)
    }

    return nil
  })

  if err != nil {
    return fmt.Errorf("failed to append readings to stream %s: %w", r.stream, err)
  }

  return nil
}

func (r *Redis) Close() error {
  return r.client.Close()
}
