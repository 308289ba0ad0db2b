package types

import (
	"math"
	"strings"
	"time"
)

type RoutePoint struct {
	ID        string   `json:"id"`
	Location  Location `json:"location"`
	Timestamp int64    `json:"timestamp"`
}

type Checkpoint struct {
	ID       string   `json:"id"`
	Location Location `json:"location"`
}

// Author владелец маршрута из таблицы users. Заполняется только при чтении списка.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

type Route struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	CreatedBy   string       `json:"created_by"`
	UserID      string       `json:"user_id"`
	Points      []RoutePoint `json:"points"`
	Checkpoints []Checkpoint `json:"checkpoints"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Author      *Author      `json:"author,omitempty"`
}

// Validate проверяет условия, при которых маршрут можно сохранить.
func (r Route) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "не задан идентификатор маршрута"}
	}
	if len(r.Points) == 0 {
		return &ValidationError{Field: "points", Reason: "нет точек для сохранения"}
	}
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Reason: "не задано название маршрута"}
	}
	if r.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "пользователь не авторизован"}
	}
	return nil
}

// Distance длина трека в метрах.
func (r Route) Distance() float64 {
	var total float64
	for i := 1; i < len(r.Points); i++ {
		total += r.Points[i-1].Location.DistanceTo(r.Points[i].Location)
	}
	return total
}

// Clone глубокая копия, чтобы снимки состояния не делили срезы с сессией.
func (r Route) Clone() Route {
	c := r
	if r.Points != nil {
		c.Points = append([]RoutePoint(nil), r.Points...)
	}
	if r.Checkpoints != nil {
		c.Checkpoints = append([]Checkpoint(nil), r.Checkpoints...)
	}
	if r.Author != nil {
		a := *r.Author
		c.Author = &a
	}
	return c
}

type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Center центр прямоугольника, используется для позиционирования карты.
func (b Bounds) Center() (float64, float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// ComputeBounds возвращает false для пустого набора точек.
func ComputeBounds(points []RoutePoint) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}

	b := Bounds{
		MinLat: math.Inf(1),
		MaxLat: math.Inf(-1),
		MinLng: math.Inf(1),
		MaxLng: math.Inf(-1),
	}
	for _, p := range points {
		b.MinLat = math.Min(b.MinLat, p.Location.Latitude)
		b.MaxLat = math.Max(b.MaxLat, p.Location.Latitude)
		b.MinLng = math.Min(b.MinLng, p.Location.Longitude)
		b.MaxLng = math.Max(b.MaxLng, p.Location.Longitude)
	}
	return b, true
}
