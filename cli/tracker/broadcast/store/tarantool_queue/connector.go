package tarantool_queue

/*
Плагин публикации событий маршрутов в очередь Tarantool.

Параметры секции events.tarantool_queue (кроме queue все необязательны):

host = "localhost"
port = "3301"
user = "guest"
password = ""
max_recons = 5
timeout = 1
reconnect = 1
queue = "routes"
*/

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tarantool/go-tarantool"
	"github.com/tarantool/go-tarantool/queue"
)

// settings разобранная секция конфига, пустые значения заменены умолчаниями
type settings struct {
	address string
	queue   string
	opts    tarantool.Opts
}

func getOptionValue(cfg map[string]string, key, def string) string {
	if v, ok := cfg[key]; ok && v != "" {
		return v
	}
	return def
}

func seconds(cfg map[string]string, key string, def int) (time.Duration, error) {
	n, err := strconv.Atoi(getOptionValue(cfg, key, strconv.Itoa(def)))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("параметр %s должен быть неотрицательным числом секунд: %q", key, cfg[key])
	}
	return time.Duration(n) * time.Second, nil
}

func parseSettings(cfg map[string]string) (settings, error) {
	s := settings{
		address: net.JoinHostPort(getOptionValue(cfg, "host", "localhost"), getOptionValue(cfg, "port", "3301")),
		queue:   cfg["queue"],
	}
	if s.queue == "" {
		return s, errors.New("не задано имя очереди Tarantool")
	}

	recons, err := strconv.ParseUint(getOptionValue(cfg, "max_recons", "5"), 10, 32)
	if err != nil {
		return s, fmt.Errorf("параметр max_recons должен быть целым: %q", cfg["max_recons"])
	}
	if s.opts.Timeout, err = seconds(cfg, "timeout", 1); err != nil {
		return s, err
	}
	if s.opts.Reconnect, err = seconds(cfg, "reconnect", 1); err != nil {
		return s, err
	}
	s.opts.MaxReconnects = uint(recons)
	s.opts.User = getOptionValue(cfg, "user", "guest")
	s.opts.Pass = cfg["password"]
	return s, nil
}

type Connector struct {
	connection *tarantool.Connection
	queue      queue.Queue
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return errors.New("секция tarantool_queue отсутствует")
	}
	s, err := parseSettings(cfg)
	if err != nil {
		return err
	}

	if c.connection, err = tarantool.Connect(s.address, s.opts); err != nil {
		return fmt.Errorf("Tarantool %s недоступен: %w", s.address, err)
	}
	c.queue = queue.New(c.connection, s.queue)
	return nil
}

// Save кладет событие в очередь строкой JSON
func (c *Connector) Save(msg interface{ ToBytes() ([]byte, error) }) error {
	if msg == nil {
		return errors.New("пустое событие маршрута")
	}
	data, err := msg.ToBytes()
	if err != nil {
		return fmt.Errorf("событие маршрута не сериализуется: %w", err)
	}
	if _, err = c.queue.Put(string(data)); err != nil {
		return fmt.Errorf("очередь Tarantool отклонила событие: %w", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.connection == nil {
		return nil
	}
	return c.connection.Close()
}
