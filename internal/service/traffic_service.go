package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/models"
)

// ErrInvalidTimeRange is returned for an unrecognized range token.
// 不做静默兜底，调用方必须传合法的区间
var ErrInvalidTimeRange = errors.New("invalid time range")

// ErrInvalidTraffic is returned for negative byte counts.
var ErrInvalidTraffic = errors.New("traffic bytes must be non-negative")

// Symbolic lookback windows accepted by Aggregate.
var timeRanges = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// TrafficStore is the persistence surface TrafficService needs.
// Implemented by repository.TrafficRepository.
type TrafficStore interface {
	Create(ctx context.Context, rec *models.TrafficRecord) error
	SumForUser(ctx context.Context, userID string, since time.Time) (upload, download float64, err error)
	SumAll(ctx context.Context, since time.Time) (upload, download float64, err error)
	SeriesAll(ctx context.Context, since time.Time) ([]*models.TrafficPoint, error)
}

// TrafficService owns the append-only traffic ledger
type TrafficService struct {
	traffic TrafficStore
}

// NewTrafficService creates a new traffic service
func NewTrafficService(traffic TrafficStore) *TrafficService {
	return &TrafficService{traffic: traffic}
}

// Record appends one immutable traffic observation. portID may be nil when
// the traffic cannot be tied to a still-existing lease.
func (s *TrafficService) Record(ctx context.Context, userID string, portID *string, uploadBytes, downloadBytes float64) (*models.TrafficRecord, error) {
	if uploadBytes < 0 || downloadBytes < 0 {
		return nil, ErrInvalidTraffic
	}

	rec := &models.TrafficRecord{
		UserID:        userID,
		PortID:        portID,
		UploadBytes:   uploadBytes,
		DownloadBytes: downloadBytes,
	}

	if err := s.traffic.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("record traffic: %w", err)
	}

	return rec, nil
}

// Aggregate sums traffic over a symbolic lookback window, scoped to one
// user when userID is non-empty or to everyone otherwise.
func (s *TrafficService) Aggregate(ctx context.Context, userID, timeRange string) (*models.TrafficStats, error) {
	since, err := s.sinceFor(timeRange)
	if err != nil {
		return nil, err
	}

	var upload, download float64
	if userID != "" {
		upload, download, err = s.traffic.SumForUser(ctx, userID, since)
	} else {
		upload, download, err = s.traffic.SumAll(ctx, since)
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate traffic: %w", err)
	}

	return &models.TrafficStats{
		Range:         timeRange,
		UploadBytes:   upload,
		DownloadBytes: download,
	}, nil
}

// Series returns hourly traffic buckets over a symbolic lookback window
// across all users (admin chart).
func (s *TrafficService) Series(ctx context.Context, timeRange string) (*models.TrafficSeriesResponse, error) {
	since, err := s.sinceFor(timeRange)
	if err != nil {
		return nil, err
	}

	points, err := s.traffic.SeriesAll(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("traffic series: %w", err)
	}

	return &models.TrafficSeriesResponse{
		Range:  timeRange,
		Points: points,
	}, nil
}

func (s *TrafficService) sinceFor(timeRange string) (time.Time, error) {
	window, ok := timeRanges[timeRange]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeRange, timeRange)
	}
	return time.Now().Add(-window), nil
}
