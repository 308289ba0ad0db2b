package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

func statusFor(err error) int {
	var (
		validationErr *types.ValidationError
		permissionErr *types.PermissionError
		remoteErr     *types.RemoteStoreError
		partialErr    *types.PartialWriteError
		connErr       *types.ConnectivityError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &permissionErr):
		return http.StatusForbidden
	case errors.Is(err, types.ErrInvalidState), errors.Is(err, types.ErrConfirmationRequired):
		return http.StatusConflict
	case errors.Is(err, types.ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrOffline), errors.As(err, &connErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &partialErr), errors.As(err, &remoteErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{"err": err, "path": c.FullPath()}).Error("Ошибка обработки запроса")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
