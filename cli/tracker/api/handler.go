package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/daniil11ru/fieldnav/cli/tracker/api/dto/request"
	"github.com/daniil11ru/fieldnav/cli/tracker/api/dto/response"
	"github.com/daniil11ru/fieldnav/cli/tracker/connectivity"
	"github.com/daniil11ru/fieldnav/cli/tracker/domain/tracking"
	"github.com/daniil11ru/fieldnav/cli/tracker/repository/route"
	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

type Tracker interface {
	Start(ctx context.Context) error
	Stop() error
	AddCheckpoint() (*types.Checkpoint, error)
	Save(ctx context.Context, name string) (string, error)
	Discard(confirmed bool) error
	View(ctx context.Context, id string) error
	Clear() error
	Locate(ctx context.Context) (*types.Location, error)
	Snapshot() tracking.Snapshot
}

type Routes interface {
	FetchRoutes(ctx context.Context) ([]types.Route, error)
	Refresh(ctx context.Context) ([]types.Route, error)
	FetchRouteByID(ctx context.Context, id string) (*types.Route, error)
	RenameRoute(ctx context.Context, id, name string) error
	DeleteRoute(ctx context.Context, id string) error
	SyncOfflineRoutes(ctx context.Context) (route.SyncReport, error)
}

type Handler struct {
	Tracker Tracker
	Routes  Routes
	Probe   connectivity.Probe
}

func NewHandler(tracker Tracker, routes Routes, probe connectivity.Probe) *Handler {
	return &Handler{Tracker: tracker, Routes: routes, Probe: probe}
}

func (h *Handler) GetTracking(c *gin.Context) {
	c.JSON(http.StatusOK, response.Tracking{
		Snapshot: h.Tracker.Snapshot(),
		Online:   h.Probe.IsOnline(c.Request.Context()),
	})
}

func (h *Handler) StartTracking(c *gin.Context) {
	if err := h.Tracker.Start(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Tracker.Snapshot())
}

func (h *Handler) StopTracking(c *gin.Context) {
	if err := h.Tracker.Stop(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Tracker.Snapshot())
}

func (h *Handler) AddCheckpoint(c *gin.Context) {
	checkpoint, err := h.Tracker.AddCheckpoint()
	if err != nil {
		writeError(c, err)
		return
	}
	if checkpoint == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, checkpoint)
}

func (h *Handler) SaveRoute(c *gin.Context) {
	req := request.SaveRoute{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.Tracker.Save(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Saved{ID: id})
}

func (h *Handler) Discard(c *gin.Context) {
	req := request.Discard{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.Tracker.Discard(req.Confirmed); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Tracker.Snapshot())
}

func (h *Handler) Locate(c *gin.Context) {
	loc, err := h.Tracker.Locate(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

func (h *Handler) ViewRoute(c *gin.Context) {
	if err := h.Tracker.View(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Tracker.Snapshot())
}

func (h *Handler) ClearView(c *gin.Context) {
	if err := h.Tracker.Clear(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Tracker.Snapshot())
}

func (h *Handler) GetRoutes(c *gin.Context) {
	routes, err := h.Routes.FetchRoutes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.NewRoutes(routes))
}

func (h *Handler) RefreshRoutes(c *gin.Context) {
	routes, err := h.Routes.Refresh(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.NewRoutes(routes))
}

func (h *Handler) GetRoute(c *gin.Context) {
	r, err := h.Routes.FetchRouteByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.NewRoute(*r))
}

func (h *Handler) RenameRoute(c *gin.Context) {
	req := request.RenameRoute{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Routes.RenameRoute(c.Request.Context(), c.Param("id"), req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteRoute(c *gin.Context) {
	if err := h.Routes.DeleteRoute(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SyncRoutes(c *gin.Context) {
	report, err := h.Routes.SyncOfflineRoutes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
