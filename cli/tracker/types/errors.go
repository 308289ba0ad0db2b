package types

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState         = errors.New("операция недоступна в текущем состоянии")
	ErrConfirmationRequired = errors.New("требуется подтверждение")
	ErrRouteNotFound        = errors.New("маршрут не найден")
	ErrOffline              = errors.New("нет подключения к сети")
)

// ValidationError входные данные не прошли проверку, пользователь может исправить их и повторить.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ошибка валидации %s: %s", e.Field, e.Reason)
}

// PermissionError пользователь не выдал доступ к геолокации.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	if e.Err == nil {
		return "нет разрешения на доступ к геолокации"
	}
	return fmt.Sprintf("нет разрешения на доступ к геолокации: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// ConnectivityError сеть недоступна или запрос прервался по транспорту.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("сеть недоступна: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// RemoteStoreError удаленное хранилище отклонило операцию.
type RemoteStoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *RemoteStoreError) Error() string {
	return fmt.Sprintf("ошибка удаленного хранилища (%s %s): %v", e.Op, e.Table, e.Err)
}

func (e *RemoteStoreError) Unwrap() error { return e.Err }

// PartialWriteError запись маршрута сохранена, а дочерние строки нет.
type PartialWriteError struct {
	RouteID string
	Table   string
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("маршрут %s сохранен частично, не записана таблица %s: %v", e.RouteID, e.Table, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// ReshapeError строка удаленного хранилища не приводится к модели маршрута.
type ReshapeError struct {
	Table string
	Field string
	Err   error
}

func (e *ReshapeError) Error() string {
	return fmt.Sprintf("не удалось разобрать поле %s таблицы %s: %v", e.Field, e.Table, e.Err)
}

func (e *ReshapeError) Unwrap() error { return e.Err }
