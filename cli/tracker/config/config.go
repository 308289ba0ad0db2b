package config

/*
Описание конфигурационного файла трекера
*/

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v2"
)

const (
	defaultLocalStore          = "sqlite"
	defaultValueCodec          = "json"
	defaultSyncCronExpression  = "@every 1m"
	defaultConnectivityTimeout = 1500
	defaultMinIntervalMs       = 2000
	defaultMinDistanceM        = 5
	defaultRequestTimeoutMs    = 5000
	defaultSubjectPrefix       = "gps"
	defaultApiPort             = 8090
	defaultBroadcastBuffer     = 64
)

type Location struct {
	URL              string  `yaml:"url"`
	SubjectPrefix    string  `yaml:"subject_prefix"`
	MinIntervalMs    int     `yaml:"min_interval_ms"`
	MinDistanceM     float64 `yaml:"min_distance_m"`
	RequestTimeoutMs int     `yaml:"request_timeout_ms"`
}

type Settings struct {
	LogLevel      string `yaml:"log_level"`
	LogFilePath   string `yaml:"log_file_path"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`

	ApiPort int32  `yaml:"api_port"`
	UserID  string `yaml:"user_id"`

	OfflineMode         bool   `yaml:"offline_mode"`
	ConnectivityTimeout int    `yaml:"connectivity_timeout_ms"`
	SyncCronExpression  string `yaml:"sync_cron_expression"`
	MigrationsPath      string `yaml:"migrations_path"`

	Remote     map[string]string `yaml:"remote"`
	LocalStore string            `yaml:"local_store"`
	Local      map[string]string `yaml:"local"`
	ValueCodec string            `yaml:"value_codec"`

	Location Location `yaml:"location"`

	Broadcast        map[string]map[string]string `yaml:"broadcast"`
	BroadcastBuffer  int                          `yaml:"broadcast_buffer"`
	BroadcastWorkers int                          `yaml:"broadcast_workers"`
}

func (s *Settings) GetLogLevel() log.Level {
	var lvl log.Level

	switch s.LogLevel {
	case "DEBUG":
		lvl = log.DebugLevel
	case "INFO":
		lvl = log.InfoLevel
	case "WARN":
		lvl = log.WarnLevel
	case "ERROR":
		lvl = log.ErrorLevel
	default:
		lvl = log.InfoLevel
	}
	return lvl
}

func (s *Settings) GetConnectivityTimeout() time.Duration {
	return time.Duration(s.ConnectivityTimeout) * time.Millisecond
}

// GetSyncSchedule расписание фоновой синхронизации, поддерживает дескрипторы вида "@every 1m"
func (s *Settings) GetSyncSchedule() (cron.Schedule, error) {
	return cron.ParseStandard(s.SyncCronExpression)
}

func (s *Settings) GetMinInterval() time.Duration {
	return time.Duration(s.Location.MinIntervalMs) * time.Millisecond
}

func (s *Settings) GetRequestTimeout() time.Duration {
	return time.Duration(s.Location.RequestTimeoutMs) * time.Millisecond
}

func New(confPath string) (Settings, error) {
	c := Settings{}
	data, err := os.ReadFile(confPath)
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return c, err
	}

	if c.LocalStore == "" {
		c.LocalStore = defaultLocalStore
	}
	if c.ValueCodec == "" {
		c.ValueCodec = defaultValueCodec
	}
	if c.SyncCronExpression == "" {
		c.SyncCronExpression = defaultSyncCronExpression
	}
	if c.ConnectivityTimeout <= 0 {
		c.ConnectivityTimeout = defaultConnectivityTimeout
	}
	if c.ApiPort == 0 {
		c.ApiPort = defaultApiPort
	}
	if c.BroadcastBuffer <= 0 {
		c.BroadcastBuffer = defaultBroadcastBuffer
	}

	if c.Location.SubjectPrefix == "" {
		c.Location.SubjectPrefix = defaultSubjectPrefix
	}
	if c.Location.MinIntervalMs <= 0 {
		c.Location.MinIntervalMs = defaultMinIntervalMs
	}
	if c.Location.MinDistanceM < 0 {
		log.Errorf("Недопустимое значение min_distance_m (%v). Используется значение по умолчанию %d м.", c.Location.MinDistanceM, defaultMinDistanceM)
		c.Location.MinDistanceM = defaultMinDistanceM
	} else if c.Location.MinDistanceM == 0 {
		c.Location.MinDistanceM = defaultMinDistanceM
	}
	if c.Location.RequestTimeoutMs <= 0 {
		c.Location.RequestTimeoutMs = defaultRequestTimeoutMs
	}

	if c.ValueCodec != "json" && c.ValueCodec != "msgpack" {
		log.Errorf("Неизвестный кодек значений %q. Используется %q.", c.ValueCodec, defaultValueCodec)
		c.ValueCodec = defaultValueCodec
	}

	return c, err
}
