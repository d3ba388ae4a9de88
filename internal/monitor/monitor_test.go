package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/client"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/models"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/repository"
)

type fakeSource struct {
	mu      sync.Mutex
	proxies []client.ProxyStats
	err     error
	calls   int
}

func (f *fakeSource) GetProxyStats(ctx context.Context) ([]client.ProxyStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.proxies, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeResolver struct {
	ports map[int]*models.Port // by port number
}

func (f *fakeResolver) GetByNumber(ctx context.Context, portNumber int) (*models.Port, error) {
	p, ok := f.ports[portNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

type recordedTraffic struct {
	userID   string
	portID   *string
	upload   float64
	download float64
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []recordedTraffic
	failFor string // user ID whose writes fail
}

func (f *fakeRecorder) Record(ctx context.Context, userID string, portID *string, uploadBytes, downloadBytes float64) (*models.TrafficRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if userID == f.failFor {
		return nil, errors.New("store unavailable")
	}
	f.records = append(f.records, recordedTraffic{userID, portID, uploadBytes, downloadBytes})
	return &models.TrafficRecord{ID: uuid.New().String(), UserID: userID, PortID: portID}, nil
}

func (f *fakeRecorder) all() []recordedTraffic {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedTraffic(nil), f.records...)
}

func lease(portNumber int, userID string) *models.Port {
	return &models.Port{
		ID:         uuid.New().String(),
		PortNumber: portNumber,
		UserID:     userID,
		ProxyType:  models.ProxyTypeTCP,
		IsActive:   true,
	}
}

func TestCycleAttributesTraffic(t *testing.T) {
	leased := lease(20000, "user-a")
	source := &fakeSource{proxies: []client.ProxyStats{
		{Name: "ssh-a", Type: "tcp", RemotePort: 20000, TrafficIn: 1000, TrafficOut: 500},
	}}
	recorder := &fakeRecorder{}
	m := New(source, &fakeResolver{ports: map[int]*models.Port{20000: leased}}, recorder, time.Minute)

	m.RunCycle(context.Background())

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, "user-a", records[0].userID)
	require.NotNil(t, records[0].portID)
	assert.Equal(t, leased.ID, *records[0].portID)
	// traffic_out 是用户上传, traffic_in 是用户下载
	assert.Equal(t, float64(500), records[0].upload)
	assert.Equal(t, float64(1000), records[0].download)
}

func TestCycleSkipsUnleasedPorts(t *testing.T) {
	leased := lease(20000, "user-a")
	source := &fakeSource{proxies: []client.ProxyStats{
		{Name: "mystery", Type: "tcp", RemotePort: 29999, TrafficIn: 9000, TrafficOut: 9000},
		{Name: "ssh-a", Type: "tcp", RemotePort: 20000, TrafficIn: 100, TrafficOut: 100},
	}}
	recorder := &fakeRecorder{}
	m := New(source, &fakeResolver{ports: map[int]*models.Port{20000: leased}}, recorder, time.Minute)

	m.RunCycle(context.Background())

	// The unleased entry is discarded, later entries still processed
	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, "user-a", records[0].userID)
}

func TestCycleSkipsNonTCPAndMissingPort(t *testing.T) {
	source := &fakeSource{proxies: []client.ProxyStats{
		{Name: "web", Type: "http", RemotePort: 20000, TrafficIn: 100, TrafficOut: 100},
		{Name: "dns", Type: "udp", RemotePort: 20000, TrafficIn: 100, TrafficOut: 100},
		{Name: "no-port", Type: "tcp", RemotePort: 0, TrafficIn: 100, TrafficOut: 100},
	}}
	recorder := &fakeRecorder{}
	m := New(source, &fakeResolver{ports: map[int]*models.Port{20000: lease(20000, "user-a")}}, recorder, time.Minute)

	m.RunCycle(context.Background())

	assert.Empty(t, recorder.all())
}

func TestCycleSkipsEntirelyOnFetchFailure(t *testing.T) {
	source := &fakeSource{err: client.ErrRelayUnreachable}
	recorder := &fakeRecorder{}
	m := New(source, &fakeResolver{ports: map[int]*models.Port{}}, recorder, time.Minute)

	// 拉取失败时不做部分写入，也不会 panic
	m.RunCycle(context.Background())
	assert.Empty(t, recorder.all())
}

func TestCycleContinuesPastEntryFailure(t *testing.T) {
	source := &fakeSource{proxies: []client.ProxyStats{
		{Name: "ssh-a", Type: "tcp", RemotePort: 20000, TrafficIn: 10, TrafficOut: 10},
		{Name: "ssh-b", Type: "tcp", RemotePort: 20001, TrafficIn: 20, TrafficOut: 20},
	}}
	resolver := &fakeResolver{ports: map[int]*models.Port{
		20000: lease(20000, "user-a"),
		20001: lease(20001, "user-b"),
	}}
	// user-a 的写入失败，user-b 的仍要成功
	recorder := &fakeRecorder{failFor: "user-a"}
	m := New(source, resolver, recorder, time.Minute)

	m.RunCycle(context.Background())

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, "user-b", records[0].userID)
}

func TestStartStop(t *testing.T) {
	source := &fakeSource{}
	recorder := &fakeRecorder{}
	m := New(source, &fakeResolver{ports: map[int]*models.Port{}}, recorder, 10*time.Millisecond)

	m.Start()
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	// The loop ran on schedule and stopped cleanly between cycles
	calls := source.callCount()
	assert.Greater(t, calls, 0)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, source.callCount())
}

func TestLoopSurvivesRepeatedFailures(t *testing.T) {
	source := &fakeSource{err: errors.New("boom")}
	recorder := &fakeRecorder{}
	m := New(source, &fakeResolver{ports: map[int]*models.Port{}}, recorder, 5*time.Millisecond)

	m.Start()
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	// Every cycle failed, loop kept retrying on schedule
	assert.Greater(t, source.callCount(), 2)
	assert.Empty(t, recorder.all())
}
