package memory

/*
Хранилище в памяти процесса. Данные не переживают перезапуск,
используется в тестах и в демонстрационном режиме.
*/

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"
)

type Connector struct {
	cache *cache.Cache
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.cache = cache.New(cache.NoExpiration, 0)
	return nil
}

func (c *Connector) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("неожиданный тип значения %T для ключа %s", v, key)
	}
	return s, true, nil
}

func (c *Connector) Set(_ context.Context, key, value string) error {
	c.cache.Set(key, value, cache.NoExpiration)
	return nil
}

func (c *Connector) Remove(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

func (c *Connector) Close() error {
	c.cache.Flush()
	return nil
}
