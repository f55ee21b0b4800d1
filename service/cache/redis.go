package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/khaledhikmat/vs-segment/model"
	"golang.org/x/xerrors"
)

const redisMaxConnections = 50

type redisService struct {
	pool *redis.Pool
}

func NewRedis(address string) IService {
	pool := redis.NewPool(func() (redis.Conn, error) {
		c, err := redis.Dial("tcp", address)
		if err != nil {
			return nil, err
		}

		return c, err
	}, redisMaxConnections)

	return &redisService{pool: pool}
}

func (svc *redisService) Get(_ context.Context, key string) (model.ImageResult, bool, error) {
	conn := svc.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", key))
	if err == redis.ErrNil {
		return model.ImageResult{}, false, nil
	}
	if err != nil {
		return model.ImageResult{}, false, xerrors.Errorf("redis get %s: %w", key, err)
	}

	var result model.ImageResult
	if err := json.Unmarshal(data, &result); err != nil {
		return model.ImageResult{}, false, xerrors.Errorf("redis get %s: %w", key, err)
	}
	return result, true, nil
}

func (svc *redisService) Put(_ context.Context, key string, result model.ImageResult, ttl time.Duration) error {
	serialized, err := json.Marshal(result)
	if err != nil {
		return err
	}

	conn := svc.pool.Get()
	defer conn.Close()

	if ttl > 0 {
		_, err = conn.Do("SETEX", key, int64(ttl.Seconds()), serialized)
	} else {
		_, err = conn.Do("SET", key, serialized)
	}
	if err != nil {
		return xerrors.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

func (svc *redisService) Close() error {
	return svc.pool.Close()
}
