package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rifflock/lfshook"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/daniil11ru/fieldnav/cli/tracker/api"
	"github.com/daniil11ru/fieldnav/cli/tracker/broadcast"
	"github.com/daniil11ru/fieldnav/cli/tracker/config"
	"github.com/daniil11ru/fieldnav/cli/tracker/connectivity"
	"github.com/daniil11ru/fieldnav/cli/tracker/connector"
	"github.com/daniil11ru/fieldnav/cli/tracker/connector/implementation"
	"github.com/daniil11ru/fieldnav/cli/tracker/domain/tracking"
	"github.com/daniil11ru/fieldnav/cli/tracker/location"
	"github.com/daniil11ru/fieldnav/cli/tracker/metrics"
	"github.com/daniil11ru/fieldnav/cli/tracker/repository/route"
	"github.com/daniil11ru/fieldnav/cli/tracker/session"
	"github.com/daniil11ru/fieldnav/cli/tracker/source/sqlstore"
	"github.com/daniil11ru/fieldnav/cli/tracker/storage"
	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configFilePath := ""
	flag.StringVar(&configFilePath, "c", "", "")
	flag.Parse()
	settings, err := getConfig(configFilePath)
	if err != nil {
		log.Fatalf("Не удалось получить конфиг: %v", err)
		return
	}

	logFile := configureLogging(settings)
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.Remote == nil {
		settings.Remote = map[string]string{}
	}
	remote := &implementation.Connector{}
	if err := remote.Connect(settings.Remote); err != nil {
		log.Fatalf("Не удалось подключиться к удаленному хранилищу: %v", err)
		return
	}
	defer remote.Close()

	if err := applyMigrations(settings, remote.GetSettings()); err != nil {
		log.WithField("err", err).Warn("Миграции не применены")
	}

	local, err := storage.LoadStore(settings.LocalStore, settings.Local)
	if err != nil {
		log.Fatalf("Не удалось открыть локальное хранилище %s: %v", settings.LocalStore, err)
		return
	}
	defer local.Close()

	codec, err := storage.NewCodec(settings.ValueCodec)
	if err != nil {
		log.Fatalf("Не удалось создать кодек значений: %v", err)
		return
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	provider, closeProvider, err := newLocationProvider(settings)
	if err != nil {
		log.Fatalf("Не удалось подключиться к мосту GPS: %v", err)
		return
	}
	defer closeProvider()

	repoOptions := []route.Option{route.WithMetrics(m)}
	events := newBroadcast(settings)
	if events != nil {
		defer events.Close()
		repoOptions = append(repoOptions, route.WithEvents(events))
	}

	probe := newProbe(settings, remote)
	routes := route.New(
		sqlstore.New(remote.GetConnection(), remote.GetDriver()),
		storage.NewRecords(local, codec),
		probe,
		repoOptions...,
	)
	tracker := tracking.New(provider, routes, session.Static{ID: settings.UserID}, tracking.WithMetrics(m))
	go logEvents(tracker.Events())

	scheduler, err := scheduleSync(settings, routes)
	if err != nil {
		log.Fatalf("Не удалось запланировать синхронизацию: %v", err)
		return
	}
	scheduler.Start()
	go runSync(ctx, routes)

	controller := api.NewController(api.NewHandler(tracker, routes, probe), registry)
	apiErr := make(chan error, 1)
	go func() { apiErr <- controller.Run(settings.ApiPort) }()

	select {
	case <-ctx.Done():
		log.Info("Получен сигнал завершения")
	case err := <-apiErr:
		if err != nil {
			log.WithField("err", err).Error("API остановлен с ошибкой")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	<-scheduler.Stop().Done()
	if tracker.Snapshot().State == types.TrackingStateRecording {
		log.Warn("Запись маршрута прервана завершением работы")
		_ = tracker.Stop()
	}
	if err := controller.Shutdown(shutdownCtx); err != nil {
		log.WithField("err", err).Error("Не удалось корректно остановить API")
	}
}

func getConfig(configFilePath string) (config.Settings, error) {
	var c config.Settings
	var err error

	if configFilePath == "" {
		return c, errors.New("не задан путь до конфига")
	}

	c, err = config.New(configFilePath)
	if err != nil {
		return c, fmt.Errorf("ошибка парсинга конфига: %v", err)
	}

	return c, nil
}

// configureLogging возвращает файловый логгер, если он настроен, чтобы его можно было закрыть
func configureLogging(settings config.Settings) *lumberjack.Logger {
	log.SetLevel(settings.GetLogLevel())

	consoleFmt := &log.TextFormatter{ForceColors: true, FullTimestamp: false}
	log.SetFormatter(consoleFmt)
	log.SetOutput(os.Stdout)

	if settings.LogFilePath == "" {
		return nil
	}

	logDir := filepath.Dir(settings.LogFilePath)
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
			log.Fatalf("Не получилось создать директорию для логов: %v", err)
		}
	}

	lumberjackLogger := &lumberjack.Logger{
		Filename:   settings.LogFilePath,
		MaxSize:    100,
		MaxBackups: 366,
		MaxAge:     settings.LogMaxAgeDays,
		Compress:   true,
	}

	fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
	hook := lfshook.NewHook(lfshook.WriterMap{
		log.PanicLevel: lumberjackLogger,
		log.FatalLevel: lumberjackLogger,
		log.ErrorLevel: lumberjackLogger,
		log.WarnLevel:  lumberjackLogger,
		log.InfoLevel:  lumberjackLogger,
		log.DebugLevel: lumberjackLogger,
		log.TraceLevel: lumberjackLogger,
	}, fileFmt)

	log.AddHook(hook)
	return lumberjackLogger
}

func applyMigrations(settings config.Settings, remote implementation.Settings) error {
	if settings.MigrationsPath == "" {
		log.Info("Путь до миграций не задан, миграции пропущены")
		return nil
	}

	databaseUrl, err := remote.MigrationURL()
	if err != nil {
		return err
	}

	m, err := migrate.New(settings.MigrationsPath, databaseUrl)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Info("Нет новых миграций для применения")
			return nil
		}
		return fmt.Errorf("ошибка применения миграций: %v", err)
	}

	log.Info("Миграции успешно применены")
	return nil
}

func newProbe(settings config.Settings, remote connector.Connector) connectivity.Probe {
	if settings.OfflineMode {
		log.Info("Включен принудительный офлайн-режим")
		return connectivity.NewStatic(false)
	}
	return connectivity.NewPingProbe(remote.GetConnection(), settings.GetConnectivityTimeout())
}

// newLocationProvider без адреса NATS возвращает ручной провайдер, фиксации в него не поступают
func newLocationProvider(settings config.Settings) (location.Provider, func(), error) {
	if settings.Location.URL == "" {
		log.Warn("Адрес моста GPS не задан, используется ручной провайдер геолокации")
		return location.NewManual(), func() {}, nil
	}

	conn, err := nats.Connect(settings.Location.URL,
		nats.Name("fieldnav-tracker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithField("err", err).Warn("Потеряно соединение с мостом GPS")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("Соединение с мостом GPS восстановлено")
		}),
	)
	if err != nil {
		return nil, nil, err
	}

	provider := location.NewNATS(conn, location.Options{
		SubjectPrefix:  settings.Location.SubjectPrefix,
		MinInterval:    settings.GetMinInterval(),
		MinDistance:    settings.Location.MinDistanceM,
		RequestTimeout: settings.GetRequestTimeout(),
	})
	return provider, conn.Close, nil
}

// newBroadcast подключает получателей событий о маршрутах, nil если они не настроены
func newBroadcast(settings config.Settings) *broadcast.AsyncRepository {
	if len(settings.Broadcast) == 0 {
		return nil
	}

	repo := broadcast.NewRepository()
	if err := repo.LoadStorages(settings.Broadcast); err != nil {
		log.WithField("err", err).Error("Не удалось подключить получателей событий, события отправляться не будут")
		_ = repo.Close()
		return nil
	}
	return broadcast.NewAsyncRepository(repo, settings.BroadcastBuffer, settings.BroadcastWorkers)
}

func logEvents(events <-chan tracking.Event) {
	for event := range events {
		log.WithFields(log.Fields{
			"event":  event.Type,
			"state":  event.Snapshot.State,
			"points": len(event.Snapshot.Points),
		}).Debug("Событие записи маршрута")
	}
}

type syncer interface {
	SyncOfflineRoutes(ctx context.Context) (route.SyncReport, error)
}

func scheduleSync(settings config.Settings, routes syncer) (*cron.Cron, error) {
	schedule, err := settings.GetSyncSchedule()
	if err != nil {
		return nil, fmt.Errorf("некорректное выражение %q: %w", settings.SyncCronExpression, err)
	}

	c := cron.New()
	c.Schedule(schedule, cron.FuncJob(func() { runSync(context.Background(), routes) }))
	log.WithField("schedule", settings.SyncCronExpression).Info("Запланирована синхронизация офлайн-маршрутов")
	return c, nil
}

func runSync(ctx context.Context, routes syncer) {
	report, err := routes.SyncOfflineRoutes(ctx)
	if err != nil {
		log.WithField("err", err).Error("Ошибка синхронизации офлайн-маршрутов")
		return
	}
	if report.Offline || report.Pending == 0 {
		return
	}
	log.WithFields(log.Fields{
		"pending": report.Pending,
		"pushed":  report.Pushed,
		"present": report.AlreadyPresent,
		"failed":  report.Failed,
	}).Info("Синхронизация офлайн-маршрутов завершена")
}
