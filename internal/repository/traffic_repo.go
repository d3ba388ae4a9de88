package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/models"
)

// TrafficRepository owns the append-only traffic_records table.
// 只有 INSERT 和 SELECT，不提供更新或删除
type TrafficRepository struct {
	pool *pgxpool.Pool
}

func NewTrafficRepository(pool *pgxpool.Pool) *TrafficRepository {
	return &TrafficRepository{pool: pool}
}

// Create inserts one traffic observation. record_time is assigned by the
// database, not the caller.
func (r *TrafficRepository) Create(ctx context.Context, rec *models.TrafficRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
		INSERT INTO tunnel.traffic_records (id, user_id, port_id, upload_bytes, download_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING record_time
	`

	err := r.pool.QueryRow(ctx, query,
		rec.ID, rec.UserID, rec.PortID, rec.UploadBytes, rec.DownloadBytes,
	).Scan(&rec.RecordTime)
	if err != nil {
		return fmt.Errorf("insert traffic record: %w", err)
	}

	return nil
}

// SumForUser sums one user's traffic since the given time
func (r *TrafficRepository) SumForUser(ctx context.Context, userID string, since time.Time) (upload, download float64, err error) {
	query := `
		SELECT COALESCE(SUM(upload_bytes), 0), COALESCE(SUM(download_bytes), 0)
		FROM tunnel.traffic_records
		WHERE user_id = $1 AND record_time >= $2
	`

	if err := r.pool.QueryRow(ctx, query, userID, since).Scan(&upload, &download); err != nil {
		return 0, 0, fmt.Errorf("sum traffic: %w", err)
	}
	return upload, download, nil
}

// SumAll sums traffic across all users since the given time
func (r *TrafficRepository) SumAll(ctx context.Context, since time.Time) (upload, download float64, err error) {
	query := `
		SELECT COALESCE(SUM(upload_bytes), 0), COALESCE(SUM(download_bytes), 0)
		FROM tunnel.traffic_records
		WHERE record_time >= $1
	`

	if err := r.pool.QueryRow(ctx, query, since).Scan(&upload, &download); err != nil {
		return 0, 0, fmt.Errorf("sum traffic: %w", err)
	}
	return upload, download, nil
}

// SeriesAll returns hourly traffic buckets across all users since the
// given time, oldest first. Used by the admin dashboard chart.
func (r *TrafficRepository) SeriesAll(ctx context.Context, since time.Time) ([]*models.TrafficPoint, error) {
	query := `
		SELECT date_trunc('hour', record_time) AS bucket,
			   COALESCE(SUM(upload_bytes), 0), COALESCE(SUM(download_bytes), 0)
		FROM tunnel.traffic_records
		WHERE record_time >= $1
		GROUP BY bucket
		ORDER BY bucket
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query traffic series: %w", err)
	}
	defer rows.Close()

	var points []*models.TrafficPoint
	for rows.Next() {
		p := &models.TrafficPoint{}
		if err := rows.Scan(&p.Bucket, &p.UploadBytes, &p.DownloadBytes); err != nil {
			return nil, fmt.Errorf("scan traffic bucket: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
