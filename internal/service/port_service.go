package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/google/uuid"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/models"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/policy"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/repository"
)

// Allocation errors, surfaced to the HTTP boundary as structured failures.
var (
	ErrQuotaExceeded  = errors.New("port quota exceeded")
	ErrPortOutOfRange = errors.New("port number out of range")
	ErrPortInUse      = errors.New("port already in use")
	ErrNotFound       = errors.New("port not found")
	ErrForbidden      = errors.New("not enough permissions")
)

// PortStore is the persistence surface PortService needs. Implemented by
// repository.PortRepository; tests substitute an in-memory fake.
type PortStore interface {
	Create(ctx context.Context, port *models.Port) error
	GetByID(ctx context.Context, id string) (*models.Port, error)
	GetByNumber(ctx context.Context, portNumber int) (*models.Port, error)
	GetByUserID(ctx context.Context, userID string) ([]*models.Port, error)
	List(ctx context.Context, offset, limit int) ([]*models.Port, error)
	CountActiveByUserID(ctx context.Context, userID string) (int, error)
	UsedPortNumbers(ctx context.Context) ([]int, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdateDescription(ctx context.Context, id string, description *string) error
	Delete(ctx context.Context, id string) error
}

// PortService owns port lease allocation and release
type PortService struct {
	ports  PortStore
	policy policy.Policy
}

// NewPortService creates a new port service
func NewPortService(ports PortStore, pol policy.Policy) *PortService {
	return &PortService{
		ports:  ports,
		policy: pol,
	}
}

// Lease creates a new port lease for the caller. Checks run in a fixed
// order so the reported error is deterministic: quota, then range, then
// uniqueness. No state is mutated on failure.
func (s *PortService) Lease(ctx context.Context, caller models.Caller, req *models.CreatePortRequest) (*models.Port, error) {
	count, err := s.ports.CountActiveByUserID(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("count leases: %w", err)
	}
	if !s.policy.CheckQuota(count) {
		return nil, fmt.Errorf("%w: maximum %d ports per user", ErrQuotaExceeded, s.policy.MaxPortsPerUser)
	}

	if !s.policy.CheckRange(req.PortNumber) {
		return nil, fmt.Errorf("%w: port must be between %d and %d", ErrPortOutOfRange, s.policy.MinPort, s.policy.MaxPort)
	}

	// 占用检查: 任何已存在的记录都算占用，包括已停用的
	_, err = s.ports.GetByNumber(ctx, req.PortNumber)
	if err == nil {
		return nil, ErrPortInUse
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check port number: %w", err)
	}

	port := &models.Port{
		ID:         uuid.New().String(),
		PortNumber: req.PortNumber,
		UserID:     caller.ID,
		ProxyType:  req.ProxyType,
		LocalIP:    req.LocalIP,
		LocalPort:  req.LocalPort,
		IsActive:   true,
	}
	if port.ProxyType == "" {
		port.ProxyType = models.ProxyTypeTCP
	}
	if port.LocalIP == "" {
		port.LocalIP = "127.0.0.1"
	}
	if port.LocalPort == 0 {
		port.LocalPort = 22
	}
	if req.Description != "" {
		port.Description = &req.Description
	}
	if req.CustomDomain != "" {
		port.CustomDomain = &req.CustomDomain
	}

	if err := s.ports.Create(ctx, port); err != nil {
		// 并发竞争同一端口时由唯一约束兜底，输者看到占用错误
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrPortInUse
		}
		return nil, fmt.Errorf("create lease: %w", err)
	}

	log.Printf("[PortService] Port %d leased to user %s (lease %s)", port.PortNumber, caller.ID, port.ID)
	return port, nil
}

// Release deletes a lease and returns the deleted record's snapshot.
// Only the owner or an admin may release.
func (s *PortService) Release(ctx context.Context, caller models.Caller, leaseID string) (*models.Port, error) {
	port, err := s.ports.GetByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get lease: %w", err)
	}

	if port.UserID != caller.ID && !caller.IsAdmin {
		return nil, ErrForbidden
	}

	if err := s.ports.Delete(ctx, leaseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete lease: %w", err)
	}

	log.Printf("[PortService] Port %d released (lease %s, requester %s)", port.PortNumber, port.ID, caller.ID)
	return port, nil
}

// Update mutates the lease's description and/or soft-disable flag.
// Only the owner or an admin may update.
func (s *PortService) Update(ctx context.Context, caller models.Caller, leaseID string, req *models.UpdatePortRequest) (*models.Port, error) {
	port, err := s.ports.GetByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get lease: %w", err)
	}

	if port.UserID != caller.ID && !caller.IsAdmin {
		return nil, ErrForbidden
	}

	if req.Description != nil {
		if err := s.ports.UpdateDescription(ctx, leaseID, req.Description); err != nil {
			return nil, fmt.Errorf("update description: %w", err)
		}
		port.Description = req.Description
	}
	if req.IsActive != nil {
		if err := s.ports.SetActive(ctx, leaseID, *req.IsActive); err != nil {
			return nil, fmt.Errorf("set active: %w", err)
		}
		port.IsActive = *req.IsActive
	}

	return port, nil
}

// GetUserPorts lists the caller's leases in creation order
func (s *PortService) GetUserPorts(ctx context.Context, userID string) ([]*models.Port, error) {
	ports, err := s.ports.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user ports: %w", err)
	}
	return ports, nil
}

// ListPorts lists all leases in creation order with pagination (admin)
func (s *PortService) ListPorts(ctx context.Context, offset, limit int) ([]*models.Port, error) {
	ports, err := s.ports.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	return ports, nil
}

// Quota returns the configured per-user lease quota
func (s *PortService) Quota() int {
	return s.policy.MaxPortsPerUser
}

// SuggestRandomPort picks a random unleased port number in range.
// Best effort: the suggestion can still lose a race at lease time.
func (s *PortService) SuggestRandomPort(ctx context.Context) (int, error) {
	numbers, err := s.ports.UsedPortNumbers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list used ports: %w", err)
	}

	used := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		used[n] = true
	}

	span := s.policy.MaxPort - s.policy.MinPort + 1
	for attempts := 0; attempts < 100; attempts++ {
		candidate := s.policy.MinPort + rand.Intn(span)
		if !used[candidate] {
			return candidate, nil
		}
	}

	return 0, fmt.Errorf("no free port found in range %d-%d", s.policy.MinPort, s.policy.MaxPort)
}
