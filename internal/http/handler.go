package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/models"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/service"
)

type Handler struct {
	portService     *service.PortService
	trafficService  *service.TrafficService
	settingsService *service.SettingsService
}

func NewHandler(portService *service.PortService, trafficService *service.TrafficService, settingsService *service.SettingsService) *Handler {
	return &Handler{
		portService:     portService,
		trafficService:  trafficService,
		settingsService: settingsService,
	}
}

// portErrorStatus maps allocation errors to HTTP status codes
func portErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrQuotaExceeded),
		errors.Is(err, service.ErrPortOutOfRange),
		errors.Is(err, service.ErrPortInUse),
		errors.Is(err, service.ErrInvalidTimeRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ==================== Port API Handlers ====================

// GetMyPorts lists the caller's leases
func (h *Handler) GetMyPorts(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	ports, err := h.portService.GetUserPorts(c.Request.Context(), caller.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, portListResponse(ports, h.portService.Quota()))
}

// CreateMyPort leases a new port to the caller
func (h *Handler) CreateMyPort(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.CreatePortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	port, err := h.portService.Lease(c.Request.Context(), caller, &req)
	if err != nil {
		c.JSON(portErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, models.NewPortResponse(port))
}

// UpdateMyPort toggles a lease's soft-disable flag / description
func (h *Handler) UpdateMyPort(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.UpdatePortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	port, err := h.portService.Update(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		c.JSON(portErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.NewPortResponse(port))
}

// DeleteMyPort releases a lease and returns the deleted snapshot
func (h *Handler) DeleteMyPort(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	port, err := h.portService.Release(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		c.JSON(portErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.NewPortResponse(port))
}

// GetRandomPort suggests a currently free port number
func (h *Handler) GetRandomPort(c *gin.Context) {
	portNumber, err := h.portService.SuggestRandomPort(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.RandomPortResponse{PortNumber: portNumber})
}

// ListAllPorts lists every lease with pagination (admin)
func (h *Handler) ListAllPorts(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	ports, err := h.portService.ListPorts(c.Request.Context(), offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, portListResponse(ports, h.portService.Quota()))
}

// ==================== Traffic API Handlers ====================

// GetMyTraffic aggregates the caller's traffic over a lookback window
func (h *Handler) GetMyTraffic(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	stats, err := h.trafficService.Aggregate(c.Request.Context(), caller.ID, c.DefaultQuery("range", "24h"))
	if err != nil {
		c.JSON(portErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetAllTraffic aggregates everyone's traffic (admin)
func (h *Handler) GetAllTraffic(c *gin.Context) {
	stats, err := h.trafficService.Aggregate(c.Request.Context(), "", c.DefaultQuery("range", "24h"))
	if err != nil {
		c.JSON(portErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetTrafficSeries returns hourly traffic buckets for charts (admin)
func (h *Handler) GetTrafficSeries(c *gin.Context) {
	series, err := h.trafficService.Series(c.Request.Context(), c.DefaultQuery("range", "24h"))
	if err != nil {
		c.JSON(portErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, series)
}

// ==================== Settings Handlers ====================

// GetSettings returns runtime settings (admin)
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings upserts runtime settings (admin)
func (h *Handler) UpdateSettings(c *gin.Context) {
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.settingsService.UpdateAll(c.Request.Context(), values); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func portListResponse(ports []*models.Port, limit int) *models.PortListResponse {
	resp := &models.PortListResponse{
		Ports: make([]*models.PortResponse, 0, len(ports)),
		Limit: limit,
	}
	for _, p := range ports {
		resp.Ports = append(resp.Ports, models.NewPortResponse(p))
	}
	return resp
}
