package models

import "time"

// ==================== Port API DTOs ====================

// CreatePortRequest is the request to lease a public port
type CreatePortRequest struct {
	PortNumber   int    `json:"port_number" binding:"required"`
	Description  string `json:"description,omitempty"`
	ProxyType    string `json:"proxy_type,omitempty"`    // 默认 tcp
	LocalIP      string `json:"local_ip,omitempty"`      // 默认 127.0.0.1
	LocalPort    int    `json:"local_port,omitempty"`    // 默认 22
	CustomDomain string `json:"custom_domain,omitempty"` // http 虚拟主机用
}

// UpdatePortRequest toggles a lease's soft-disable flag / description
type UpdatePortRequest struct {
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// PortResponse is the external view of a lease
type PortResponse struct {
	ID           string  `json:"id"`
	PortNumber   int     `json:"port_number"`
	UserID       string  `json:"user_id"`
	Description  *string `json:"description,omitempty"`
	ProxyType    string  `json:"proxy_type"`
	LocalIP      string  `json:"local_ip"`
	LocalPort    int     `json:"local_port"`
	CustomDomain *string `json:"custom_domain,omitempty"`
	IsActive     bool    `json:"is_active"`
	CreatedAt    string  `json:"created_at"`
}

// PortListResponse is returned by the list endpoints
type PortListResponse struct {
	Ports []*PortResponse `json:"ports"`
	Limit int             `json:"limit"` // 每用户端口配额
}

// RandomPortResponse suggests a currently free port number
type RandomPortResponse struct {
	PortNumber int `json:"port_number"`
}

// ==================== Traffic API DTOs ====================

// TrafficStats is an aggregated traffic view over a lookback window
type TrafficStats struct {
	Range         string  `json:"range"`
	UploadBytes   float64 `json:"upload_bytes"`
	DownloadBytes float64 `json:"download_bytes"`
}

// TrafficPoint is one hourly bucket in a traffic series
type TrafficPoint struct {
	Bucket        time.Time `json:"bucket"`
	UploadBytes   float64   `json:"upload_bytes"`
	DownloadBytes float64   `json:"download_bytes"`
}

// TrafficSeriesResponse is returned by the admin chart endpoint
type TrafficSeriesResponse struct {
	Range  string          `json:"range"`
	Points []*TrafficPoint `json:"points"`
}

// NewPortResponse converts a Port to its external view
func NewPortResponse(p *Port) *PortResponse {
	return &PortResponse{
		ID:           p.ID,
		PortNumber:   p.PortNumber,
		UserID:       p.UserID,
		Description:  p.Description,
		ProxyType:    p.ProxyType,
		LocalIP:      p.LocalIP,
		LocalPort:    p.LocalPort,
		CustomDomain: p.CustomDomain,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
}
