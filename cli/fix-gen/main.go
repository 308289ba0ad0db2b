package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/daniil11ru/fieldnav/cli/tracker/location"
	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

/*
Имитатор моста GPS.

Публикует фиксации в <prefix>.fix и отвечает на запросы <prefix>.permission и <prefix>.current,
так что трекер можно запустить без устройства.

Пример

```
./fix-gen --server nats://localhost:4222 --lat 55.75 --lon 37.61 --count 120 --interval 1000 --step 8
```
*/

const metersPerDegree = 111320.0

func main() {
	server := ""
	prefix := ""
	lat := 0.0
	lon := 0.0
	count := 0
	intervalMs := 0
	step := 0.0
	bearing := 0.0
	accuracy := 0.0
	deny := false

	flag.StringVar(&server, "server", nats.DefaultURL, "Адрес NATS-сервера")
	flag.StringVar(&prefix, "prefix", "gps", "Префикс тем моста GPS")
	flag.Float64Var(&lat, "lat", 55.7558, "Начальная широта")
	flag.Float64Var(&lon, "lon", 37.6173, "Начальная долгота")
	flag.IntVar(&count, "count", 60, "Количество фиксаций, 0 - без ограничения")
	flag.IntVar(&intervalMs, "interval", 2000, "Интервал между фиксациями в миллисекундах")
	flag.Float64Var(&step, "step", 10, "Смещение между фиксациями в метрах")
	flag.Float64Var(&bearing, "bearing", 45, "Направление движения в градусах")
	flag.Float64Var(&accuracy, "accuracy", 5, "Точность фиксаций в метрах")
	flag.BoolVar(&deny, "deny", false, "Отказывать в доступе к геолокации")

	flag.Parse()

	if intervalMs <= 0 {
		fmt.Println("Интервал должен быть положительным, смотрите помощь (-h)")
		os.Exit(1)
	}
	current := types.Location{Latitude: lat, Longitude: lon, Accuracy: &accuracy, Timestamp: time.Now().UnixMilli()}
	if err := current.Validate(); err != nil {
		fmt.Println("Некорректная начальная позиция: ", err)
		os.Exit(1)
	}

	conn, err := nats.Connect(server, nats.Name("fieldnav-fix-gen"))
	if err != nil {
		fmt.Println("Ошибка соединения: ", err)
		os.Exit(1)
	}
	defer conn.Drain()

	status := "granted"
	if deny {
		status = "denied"
	}
	permission, _ := json.Marshal(location.PermissionReply{Status: status})
	if _, err = conn.Subscribe(location.Subject(prefix, "permission"), func(m *nats.Msg) {
		_ = m.Respond(permission)
	}); err != nil {
		fmt.Println("Ошибка подписки: ", err)
		os.Exit(1)
	}

	positions := make(chan types.Location, 1)
	positions <- current
	if _, err = conn.Subscribe(location.Subject(prefix, "current"), func(m *nats.Msg) {
		loc := <-positions
		positions <- loc
		data, _ := json.Marshal(loc)
		_ = m.Respond(data)
	}); err != nil {
		fmt.Println("Ошибка подписки: ", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	rad := bearing * math.Pi / 180
	for sent := 0; count == 0 || sent < count; sent++ {
		select {
		case <-stop:
			fmt.Printf("Остановлено, отправлено фиксаций: %d\n", sent)
			return
		case <-ticker.C:
		}

		current.Latitude += step * math.Cos(rad) / metersPerDegree
		current.Longitude += step * math.Sin(rad) / (metersPerDegree * math.Cos(current.Latitude*math.Pi/180))
		current.Timestamp = time.Now().UnixMilli()
		<-positions
		positions <- current

		data, err := json.Marshal(current)
		if err != nil {
			fmt.Println("Ошибка кодирования фиксации: ", err)
			os.Exit(1)
		}
		if err = conn.Publish(location.Subject(prefix, "fix"), data); err != nil {
			fmt.Println("Ошибка публикации: ", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Отправлено фиксаций: %d\n", count)
}
