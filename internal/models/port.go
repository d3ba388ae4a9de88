package models

import (
	"time"
)

// Proxy type constants (protocols the relay can forward)
const (
	ProxyTypeTCP  = "tcp"
	ProxyTypeUDP  = "udp"
	ProxyTypeHTTP = "http"
)

// Port represents one leased public port on the relay.
// port_number is globally unique; the unique constraint in the database
// is the final arbiter under concurrent lease requests.
type Port struct {
	ID           string
	PortNumber   int
	UserID       string
	Description  *string
	ProxyType    string
	LocalIP      string
	LocalPort    int
	CustomDomain *string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// TrafficRecord is one immutable traffic observation taken from the relay.
// PortID is nullable: the record survives even if the port it was observed
// on is later released.
type TrafficRecord struct {
	ID            string
	UserID        string
	PortID        *string
	UploadBytes   float64
	DownloadBytes float64
	RecordTime    time.Time
}

// SystemConfig is a mutable key/value operational setting.
// 运行时可调参数，不需要重启服务
type SystemConfig struct {
	ID          string
	Key         string
	Value       string
	Description *string
	UpdatedAt   *time.Time
}
