package storage

import (
	"context"
	"errors"

	"github.com/daniil11ru/fieldnav/cli/tracker/storage/store/memory"
	"github.com/daniil11ru/fieldnav/cli/tracker/storage/store/redis"
	"github.com/daniil11ru/fieldnav/cli/tracker/storage/store/sqlite"
)

var ErrNotFound = errors.New("ключ не найден в локальном хранилище")
var ErrUnknownStorage = errors.New("локальное хранилище не поддерживается")

// Store долговременное локальное хранилище ключ-значение на устройстве
type Store interface {
	Connector
	KeyValue
}

// KeyValue операции над строковыми значениями
type KeyValue interface {
	// Get возвращает значение и признак его наличия
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Connector интерфейс для подключения хранилища
type Connector interface {
	// Init установка соединения с хранилищем
	Init(map[string]string) error

	// Close закрытие соединения с хранилищем
	Close() error
}

// LoadStore создает и инициализирует хранилище по имени из конфига
func LoadStore(name string, params map[string]string) (Store, error) {
	var db Store
	switch name {
	case "sqlite":
		db = &sqlite.Connector{}
	case "redis":
		db = &redis.Connector{}
	case "memory":
		db = &memory.Connector{}
	default:
		return nil, ErrUnknownStorage
	}

	if params == nil {
		params = map[string]string{}
	}
	if err := db.Init(params); err != nil {
		return nil, err
	}
	return db, nil
}
