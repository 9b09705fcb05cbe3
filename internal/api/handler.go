package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/derickschaefer/timedeck/internal/app"
	"github.com/derickschaefer/timedeck/internal/catalog"
	"github.com/derickschaefer/timedeck/internal/convert"
	"github.com/derickschaefer/timedeck/internal/model"
	"github.com/derickschaefer/timedeck/internal/registry"
	"github.com/derickschaefer/timedeck/internal/timeparse"
)

// Handler wires the HTTP transport to the dashboard.
type Handler struct {
	dash   *app.Dashboard
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler constructs the HTTP handler. A nil logger means slog.Default.
func NewHandler(dash *app.Dashboard, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dash:   dash,
		logger: logger.With("component", "http.handler"),
		now:    time.Now,
	}
}

type selectRequest struct {
	ID string `json:"id" binding:"required"`
}

type reorderRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type convertRequest struct {
	Time           string `json:"time" binding:"required"`
	SourceTimezone string `json:"source_timezone"`
}

// CitiesResponse is returned by every list read or mutation.
type CitiesResponse struct {
	Cities           []model.City `json:"cities"`
	StorageAvailable bool         `json:"storage_available"`
	Persisted        *bool        `json:"persisted,omitempty"`
	Warning          string       `json:"warning,omitempty"`
	Warnings         []string     `json:"warnings,omitempty"`
}

// ClockResponse carries the latest readings.
type ClockResponse struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Readings    []model.CityReading `json:"readings"`
}

// Health reports liveness and storage status.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"storage_available": h.dash.StorageAvailable(),
	})
}

// ListCities returns the tracked list with any load warnings.
func (h *Handler) ListCities(c *gin.Context) {
	c.JSON(http.StatusOK, CitiesResponse{
		Cities:           nonNil(h.dash.Cities()),
		StorageAvailable: h.dash.StorageAvailable(),
		Warnings:         h.dash.LoadWarnings(),
	})
}

// SelectCity tracks a catalog city.
func (h *Handler) SelectCity(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	ch, err := h.dash.OnCitySelect(mutationContext(c), req.ID)
	switch {
	case errors.Is(err, catalog.ErrUnknownCity):
		abortWithError(c, NewHTTPError(http.StatusNotFound, "unknown_city", errMessage(err), err))
		return
	case errors.Is(err, registry.ErrAlreadyTracked):
		abortWithError(c, NewHTTPError(http.StatusConflict, "already_tracked", errMessage(err), err))
		return
	case err != nil:
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_city", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, h.changeResponse(ch))
}

// RemoveCity stops tracking :id. It succeeds whether or not the id was tracked.
func (h *Handler) RemoveCity(c *gin.Context) {
	ch := h.dash.OnCityRemove(mutationContext(c), c.Param("id"))
	c.JSON(http.StatusOK, h.changeResponse(ch))
}

// Reorder applies a new order; anything but a permutation is rejected.
func (h *Handler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	ch, err := h.dash.OnReorder(mutationContext(c), req.IDs)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusUnprocessableEntity, "rejected", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, h.changeResponse(ch))
}

// Convert projects a time phrase onto the tracked cities.
func (h *Handler) Convert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	conv, err := h.dash.OnConvert(req.Time, req.SourceTimezone)
	if err != nil {
		var pe *timeparse.ParseError
		switch {
		case errors.As(err, &pe):
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_time", errMessage(err), err))
		case errors.Is(err, convert.ErrInvalidTimezone):
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_timezone", errMessage(err), err))
		default:
			abortWithError(c, NewHTTPError(http.StatusInternalServerError, "convert_failed", errMessage(err), err))
		}
		return
	}
	if conv.Results == nil {
		conv.Results = []model.ConversionResult{}
	}
	c.JSON(http.StatusOK, conv)
}

// Clock returns the latest reading for every tracked city.
func (h *Handler) Clock(c *gin.Context) {
	now := h.now()
	readings := h.dash.Clock(now)
	c.JSON(http.StatusOK, ClockResponse{GeneratedAt: now.UTC(), Readings: readings})
}

// Catalog searches the catalog by ?q=. With ?available=true tracked cities
// are left out.
func (h *Handler) Catalog(c *gin.Context) {
	query := c.Query("q")
	available, _ := strconv.ParseBool(c.DefaultQuery("available", "false"))
	var cities []model.City
	if available {
		cities = h.dash.Available(query)
	} else {
		cities = h.dash.Search(query)
	}
	c.JSON(http.StatusOK, gin.H{"cities": nonNil(cities)})
}

func (h *Handler) changeResponse(ch registry.Change) CitiesResponse {
	persisted := ch.Persisted
	resp := CitiesResponse{
		Cities:           nonNil(ch.Cities),
		StorageAvailable: h.dash.StorageAvailable(),
		Persisted:        &persisted,
	}
	if ch.Warning != nil {
		resp.Warning = ch.Warning.Error()
	}
	return resp
}

// mutationContext keeps request values but not cancellation, so a client
// that disconnects mid-request does not abort the durability write.
func mutationContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func nonNil(cities []model.City) []model.City {
	if cities == nil {
		return []model.City{}
	}
	return cities
}
