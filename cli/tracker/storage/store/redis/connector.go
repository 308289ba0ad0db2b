package redis

/*
Плагин локального хранилища на Redis.

Раздел настроек:

addr = "localhost:6379"
password = ""
db = 0
prefix = "fieldnav:"
*/

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

type Connector struct {
	client *redis.Client
	prefix string
	config map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg

	addr := c.config["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}
	db := 0
	if v := c.config["db"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("не удалось получить номер базы Redis: %v", err)
		}
		db = n
	}
	c.prefix = c.config["prefix"]

	c.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: c.config["password"],
		DB:       db,
	})
	if err := c.client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("Redis недоступен: %v", err)
	}
	return nil
}

func (c *Connector) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("не удалось прочитать ключ %s: %v", key, err)
	}
	return value, true, nil
}

func (c *Connector) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, c.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("не удалось записать ключ %s: %v", key, err)
	}
	return nil
}

func (c *Connector) Remove(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("не удалось удалить ключ %s: %v", key, err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.client.Close()
}
