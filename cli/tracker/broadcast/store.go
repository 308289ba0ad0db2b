package broadcast

import (
	"errors"
	"fmt"

	"github.com/daniil11ru/fieldnav/cli/tracker/broadcast/store/nats"
	"github.com/daniil11ru/fieldnav/cli/tracker/broadcast/store/rabbitmq"
	"github.com/daniil11ru/fieldnav/cli/tracker/broadcast/store/tarantool_queue"
)

var ErrInvalidStorage = errors.New("не задано ни одного получателя событий")
var ErrUnknownStorage = errors.New("получатель событий не поддерживается")

type Store interface {
	Connector
	Saver
}

// Saver интерфейс для отправки событий во внешние системы
type Saver interface {
	// Save отправка события
	Save(interface{ ToBytes() ([]byte, error) }) error
}

// Connector интерфейс для подключения внешних систем
type Connector interface {
	// Init установка соединения
	Init(map[string]string) error

	// Close закрытие соединения
	Close() error
}

// Repository набор получателей событий о маршрутах
type Repository struct {
	storages []Saver
	closers  []Connector
}

// AddStore добавляет получателя событий
func (r *Repository) AddStore(s Saver) {
	r.storages = append(r.storages, s)
	if c, ok := s.(Connector); ok {
		r.closers = append(r.closers, c)
	}
}

// Save отправляет событие всем получателям. Ошибка одного получателя не мешает остальным.
func (r *Repository) Save(m interface{ ToBytes() ([]byte, error) }) error {
	var errs []error
	for _, store := range r.storages {
		if err := store.Save(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadStorages загружает получателей из структуры конфига
func (r *Repository) LoadStorages(storages map[string]map[string]string) error {
	if len(storages) == 0 {
		return ErrInvalidStorage
	}

	var db Store
	for store, params := range storages {
		switch store {
		case "nats":
			db = &nats.Connector{}
		case "rabbitmq":
			db = &rabbitmq.Connector{}
		case "tarantool_queue":
			db = &tarantool_queue.Connector{}
		default:
			return ErrUnknownStorage
		}

		if err := db.Init(params); err != nil {
			return fmt.Errorf("не удалось подключить %s: %w", store, err)
		}

		r.AddStore(db)
	}
	return nil
}

func (r *Repository) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRepository создает пустой репозиторий
func NewRepository() *Repository {
	return &Repository{}
}
