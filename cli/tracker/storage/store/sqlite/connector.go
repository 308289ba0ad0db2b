package sqlite

/*
Плагин локального хранилища на SQLite.

Раздел настроек:

path = "data/tracker.db"
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

type Connector struct {
	connection *sql.DB
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg

	path := c.config["path"]
	if path == "" {
		path = "data/tracker.db"
	}
	if path != ":memory:" {
		if err = os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return fmt.Errorf("не удалось создать директорию для SQLite: %v", err)
		}
	}

	if c.connection, err = sql.Open("sqlite", path); err != nil {
		return fmt.Errorf("ошибка открытия SQLite: %v", err)
	}
	// один писатель, иначе SQLITE_BUSY под нагрузкой
	c.connection.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schema} {
		if _, err = c.connection.Exec(stmt); err != nil {
			c.connection.Close()
			return fmt.Errorf("ошибка инициализации SQLite (%s): %v", stmt, err)
		}
	}
	return nil
}

func (c *Connector) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := c.connection.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("не удалось прочитать ключ %s: %v", key, err)
	}
	return value, true, nil
}

func (c *Connector) Set(ctx context.Context, key, value string) error {
	_, err := c.connection.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("не удалось записать ключ %s: %v", key, err)
	}
	return nil
}

func (c *Connector) Remove(ctx context.Context, key string) error {
	if _, err := c.connection.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("не удалось удалить ключ %s: %v", key, err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.connection.Close()
}
