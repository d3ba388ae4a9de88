package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/models"
)

var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates the port_number unique
// constraint. Under concurrent lease requests for the same port the
// database decides the winner; the loser sees this error.
var ErrConflict = errors.New("conflict")

type PortRepository struct {
	pool *pgxpool.Pool
}

func NewPortRepository(pool *pgxpool.Pool) *PortRepository {
	return &PortRepository{pool: pool}
}

// Create inserts a new port lease
func (r *PortRepository) Create(ctx context.Context, port *models.Port) error {
	query := `
		INSERT INTO tunnel.ports (
			id, port_number, user_id, description, proxy_type,
			local_ip, local_port, custom_domain, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		port.ID, port.PortNumber, port.UserID, port.Description, port.ProxyType,
		port.LocalIP, port.LocalPort, port.CustomDomain, port.IsActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert port: %w", err)
	}

	return nil
}

// GetByID retrieves a port lease by ID
func (r *PortRepository) GetByID(ctx context.Context, id string) (*models.Port, error) {
	query := `
		SELECT id, port_number, user_id, description, proxy_type,
			   local_ip, local_port, custom_domain, is_active, created_at, updated_at
		FROM tunnel.ports
		WHERE id = $1
	`

	return r.scanPort(r.pool.QueryRow(ctx, query, id))
}

// GetByNumber retrieves a port lease by its public port number.
// Exact-match lookup: used by the uniqueness check and once per reported
// proxy per reconciliation cycle.
func (r *PortRepository) GetByNumber(ctx context.Context, portNumber int) (*models.Port, error) {
	query := `
		SELECT id, port_number, user_id, description, proxy_type,
			   local_ip, local_port, custom_domain, is_active, created_at, updated_at
		FROM tunnel.ports
		WHERE port_number = $1
	`

	return r.scanPort(r.pool.QueryRow(ctx, query, portNumber))
}

// GetByUserID retrieves all port leases held by a user
func (r *PortRepository) GetByUserID(ctx context.Context, userID string) ([]*models.Port, error) {
	query := `
		SELECT id, port_number, user_id, description, proxy_type,
			   local_ip, local_port, custom_domain, is_active, created_at, updated_at
		FROM tunnel.ports
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query ports: %w", err)
	}
	defer rows.Close()

	return r.scanPorts(rows)
}

// List retrieves port leases in creation order with pagination
func (r *PortRepository) List(ctx context.Context, offset, limit int) ([]*models.Port, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, port_number, user_id, description, proxy_type,
			   local_ip, local_port, custom_domain, is_active, created_at, updated_at
		FROM tunnel.ports
		ORDER BY created_at
		OFFSET $1 LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query ports: %w", err)
	}
	defer rows.Close()

	return r.scanPorts(rows)
}

// CountActiveByUserID counts a user's active leases (quota check)
func (r *PortRepository) CountActiveByUserID(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM tunnel.ports WHERE user_id = $1 AND is_active`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count ports: %w", err)
	}
	return count, nil
}

// UsedPortNumbers returns every leased port number (active or not)
func (r *PortRepository) UsedPortNumbers(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT port_number FROM tunnel.ports`)
	if err != nil {
		return nil, fmt.Errorf("query port numbers: %w", err)
	}
	defer rows.Close()

	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan port number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// SetActive flips the soft-disable flag
func (r *PortRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE tunnel.ports SET is_active = $1, updated_at = now() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("update port: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDescription updates the lease description
func (r *PortRepository) UpdateDescription(ctx context.Context, id string, description *string) error {
	query := `UPDATE tunnel.ports SET description = $1, updated_at = now() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, description, id)
	if err != nil {
		return fmt.Errorf("update port: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a port lease
func (r *PortRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tunnel.ports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete port: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PortRepository) scanPort(row pgx.Row) (*models.Port, error) {
	port := &models.Port{}
	err := row.Scan(
		&port.ID, &port.PortNumber, &port.UserID, &port.Description, &port.ProxyType,
		&port.LocalIP, &port.LocalPort, &port.CustomDomain, &port.IsActive,
		&port.CreatedAt, &port.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan port: %w", err)
	}
	return port, nil
}

func (r *PortRepository) scanPorts(rows pgx.Rows) ([]*models.Port, error) {
	var ports []*models.Port
	for rows.Next() {
		port := &models.Port{}
		err := rows.Scan(
			&port.ID, &port.PortNumber, &port.UserID, &port.Description, &port.ProxyType,
			&port.LocalIP, &port.LocalPort, &port.CustomDomain, &port.IsActive,
			&port.CreatedAt, &port.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan port row: %w", err)
		}
		ports = append(ports, port)
	}
	return ports, rows.Err()
}
