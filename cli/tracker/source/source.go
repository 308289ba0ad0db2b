package source

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
)

const (
	TableRoutes      = "routes"
	TableRoutePoints = "route_points"
	TableCheckpoints = "checkpoints"
	TableUsers       = "users"
)

var (
	// ErrDuplicate нарушение уникальности первичного ключа
	ErrDuplicate = errors.New("запись с таким ключом уже существует")
	// ErrUnavailable удаленное хранилище недоступно по сети
	ErrUnavailable = errors.New("удаленное хранилище недоступно")
)

// Row строка таблицы без типизации, приведение выполняет репозиторий
type Row map[string]interface{}

// Filter условия равенства, значение-срез трактуется как IN
type Filter map[string]interface{}

type Query struct {
	Where   Filter
	OrderBy []string
	Limit   uint64
}

// TableStore обобщенный доступ к таблицам удаленного хранилища
type TableStore interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, rows ...Row) error
	Update(ctx context.Context, table string, patch Row, where Filter) (int64, error)
	Delete(ctx context.Context, table string, where Filter) (int64, error)
	PingContext(ctx context.Context) error
}

// IsConnectivity отличает транспортные сбои от отказов самого хранилища
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
