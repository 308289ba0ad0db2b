package implementation

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/daniil11ru/fieldnav/cli/tracker/connector"
)

type Settings struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

type Connector struct {
	connection *sql.DB
	settings   Settings
}

var _ connector.Connector = (*Connector)(nil)

func getOptionValue(optionName string, optionDefaultValue string, settings map[string]string) string {
	optionValue := settings[optionName]
	if optionValue == "" {
		log.Warnf("Ключ '%s' не найден в конфигурации удаленного хранилища. Используется значение по умолчанию '%s'.", optionName, optionDefaultValue)
		optionValue = optionDefaultValue
	}

	return optionValue
}

func (c *Connector) FillSettings(settings map[string]string) {
	c.settings.Driver = getOptionValue("driver", "postgres", settings)
	defaultPort := "5432"
	if c.settings.Driver == "mysql" {
		defaultPort = "3306"
	}
	c.settings.Host = getOptionValue("host", "localhost", settings)
	c.settings.Port = getOptionValue("port", defaultPort, settings)
	c.settings.User = getOptionValue("user", "postgres", settings)
	c.settings.Password = getOptionValue("password", "postgres", settings)
	c.settings.Database = getOptionValue("database", "fieldnav", settings)
	c.settings.SSLMode = getOptionValue("sslmode", "disable", settings)
}

func (c *Connector) GetSettings() Settings {
	return c.settings
}

// DataSourceName строка подключения для database/sql
func (s Settings) DataSourceName() (string, error) {
	switch s.Driver {
	case "postgres":
		return fmt.Sprintf("dbname=%s host=%s port=%s user=%s password=%s sslmode=%s",
			s.Database, s.Host, s.Port, s.User, s.Password, s.SSLMode), nil
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = s.User
		cfg.Passwd = s.Password
		cfg.Net = "tcp"
		cfg.Addr = s.Host + ":" + s.Port
		cfg.DBName = s.Database
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	default:
		return "", fmt.Errorf("неизвестный драйвер базы данных: %s", s.Driver)
	}
}

// MigrationURL адрес базы в формате golang-migrate
func (s Settings) MigrationURL() (string, error) {
	switch s.Driver {
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(s.User, s.Password),
			Host:     s.Host + ":" + s.Port,
			Path:     "/" + s.Database,
			RawQuery: "sslmode=" + s.SSLMode,
		}
		return u.String(), nil
	case "mysql":
		dsn, err := s.DataSourceName()
		if err != nil {
			return "", err
		}
		return "mysql://" + dsn, nil
	default:
		return "", fmt.Errorf("неизвестный драйвер базы данных: %s", s.Driver)
	}
}

func (c *Connector) Connect(settings map[string]string) error {
	var err error
	if settings == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	c.FillSettings(settings)

	dsn, err := c.settings.DataSourceName()
	if err != nil {
		return err
	}

	if c.connection, err = sql.Open(c.settings.Driver, dsn); err != nil {
		return fmt.Errorf("ошибка подключения к %s: %v", c.settings.Driver, err)
	}

	// база может быть недоступна при старте на устройстве, это штатный офлайн-режим
	if err = c.connection.Ping(); err != nil {
		log.WithField("err", err).Warnf("Удаленное хранилище %s сейчас недоступно", c.settings.Driver)
	}
	return nil
}

func (c *Connector) GetConnection() *sql.DB {
	return c.connection
}

func (c *Connector) GetDriver() string {
	return c.settings.Driver
}

func (c *Connector) Close() error {
	if c.connection == nil {
		return nil
	}
	return c.connection.Close()
}
