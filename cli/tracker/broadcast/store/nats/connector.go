package nats

/*
Плагин для отправки событий в NATS.

Раздел настроек, которые должны отвечають в конфиге для подключения:

servers = "nats://localhost:4222"
topic = "routes"
*/

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

type Connector struct {
	connection *nats.Conn
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg
	if c.config["topic"] == "" {
		return fmt.Errorf("не задан topic для NATS")
	}

	if c.connection, err = nats.Connect(c.config["servers"], nats.Name("fieldnav-tracker")); err != nil {
		return fmt.Errorf("не удалось подключиться к NATS: %v", err)
	}
	return err
}

func (c *Connector) Save(msg interface{ ToBytes() ([]byte, error) }) error {
	if msg == nil {
		return fmt.Errorf("некорректная ссылка на событие")
	}

	data, err := msg.ToBytes()
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %v", err)
	}

	if err = c.connection.Publish(c.config["topic"], data); err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.connection == nil {
		return nil
	}
	return c.connection.Drain()
}
