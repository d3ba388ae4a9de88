// Package monitor runs the traffic reconciliation loop: on a fixed
// interval it pulls proxy statistics from the frps dashboard, resolves
// each reported remote port to its lease, and appends one traffic record
// per attributable proxy.
package monitor

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/client"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/models"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/repository"
)

// StatsSource provides relay proxy statistics. Implemented by
// client.FrpsClient; tests substitute a fake.
type StatsSource interface {
	GetProxyStats(ctx context.Context) ([]client.ProxyStats, error)
}

// PortResolver maps a reported remote port back to its lease.
// Implemented by repository.PortRepository.
type PortResolver interface {
	GetByNumber(ctx context.Context, portNumber int) (*models.Port, error)
}

// TrafficRecorder appends traffic observations. Implemented by
// service.TrafficService.
type TrafficRecorder interface {
	Record(ctx context.Context, userID string, portID *string, uploadBytes, downloadBytes float64) (*models.TrafficRecord, error)
}

// Monitor is the single long-lived reconciliation task. It keeps no
// persisted state: every cycle is independent, and a failed cycle only
// loses that interval's observation.
type Monitor struct {
	source   StatsSource
	ports    PortResolver
	traffic  TrafficRecorder
	interval time.Duration

	// proxy types this deployment reconciles; currently tcp only
	proxyTypes map[string]bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a monitor with the default reconciled proxy types.
func New(source StatsSource, ports PortResolver, traffic TrafficRecorder, interval time.Duration) *Monitor {
	return &Monitor{
		source:   source,
		ports:    ports,
		traffic:  traffic,
		interval: interval,
		proxyTypes: map[string]bool{
			models.ProxyTypeTCP: true,
		},
	}
}

// Start launches the loop in its own goroutine. The first cycle runs one
// interval after start, matching the original deployment's behavior.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx)

	log.Printf("[Monitor] Traffic monitor started (interval %s)", m.interval)
}

// Stop signals the loop to exit and waits for the in-flight cycle to
// finish. The relay fetch timeout bounds the wait.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	log.Printf("[Monitor] Traffic monitor stopped")
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle executes one fetch-resolve-record pass. Errors are logged and
// never propagated: a failed cycle must not stop the schedule.
func (m *Monitor) RunCycle(ctx context.Context) {
	proxies, err := m.source.GetProxyStats(ctx)
	if err != nil {
		// 整个周期跳过，不做部分写入
		log.Printf("[Monitor] Failed to fetch relay stats, skipping cycle: %v", err)
		return
	}

	recorded := 0
	for _, proxy := range proxies {
		if !m.proxyTypes[proxy.Type] {
			continue
		}
		if proxy.RemotePort <= 0 {
			continue
		}

		port, err := m.ports.GetByNumber(ctx, proxy.RemotePort)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// 无主端口的流量不可归属，直接丢弃
				continue
			}
			log.Printf("[Monitor] Failed to resolve port %d: %v", proxy.RemotePort, err)
			continue
		}

		// frps 视角: traffic_out 是发给访问者的数据 (用户上传)，
		// traffic_in 是访问者发来的数据 (用户下载)
		_, err = m.traffic.Record(ctx, port.UserID, &port.ID,
			float64(proxy.TrafficOut), float64(proxy.TrafficIn))
		if err != nil {
			log.Printf("[Monitor] Failed to record traffic for port %d: %v", proxy.RemotePort, err)
			continue
		}
		recorded++
	}

	if recorded > 0 {
		log.Printf("[Monitor] Reconciliation cycle done: %d/%d proxies recorded", recorded, len(proxies))
	}
}
