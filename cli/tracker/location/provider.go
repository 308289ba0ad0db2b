package location

import (
	"context"

	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

// Provider источник геолокации устройства.
// Одновременно активна не более одной подписки: повторный StartTracking заменяет предыдущую.
// После возврата из StopTracking обработчик больше не вызывается.
type Provider interface {
	// RequestPermission возвращает *types.PermissionError, если доступ не выдан
	RequestPermission(ctx context.Context) error
	CurrentLocation(ctx context.Context) (*types.Location, error)
	StartTracking(onUpdate func(types.Location)) error
	StopTracking()
}
