package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

const (
	statsCacheKey = "grievance:stats:dashboard"
	statsCacheTTL = 60 * time.Second
)

// DashboardStats aggregates the admin dashboard numbers.
type DashboardStats struct {
	ByStatus          map[domain.ComplaintStatus]int64   `json:"by_status"`
	ByCategory        map[domain.ComplaintCategory]int64 `json:"by_category"`
	ResolvedWithinSLA int64                              `json:"resolved_within_sla"`
	ResolvedLate      int64                              `json:"resolved_late"`
	OpenBreached      int64                              `json:"open_breached"`
	SLAComplianceRate float64                            `json:"sla_compliance_rate"`
	GeneratedAt       time.Time                          `json:"generated_at"`
}

// StatsService computes dashboard aggregates, cached briefly in Redis so a
// dashboard poll does not hammer the complaint table.
type StatsService struct {
	complaints repository.ComplaintRepository
	cache      *redis.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewStatsService builds the service. A nil cache client disables caching.
func NewStatsService(complaints repository.ComplaintRepository, cache *redis.Client, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		complaints: complaints,
		cache:      cache,
		logger:     logger,
		now:        time.Now,
	}
}

// Dashboard returns the current aggregates, served from cache when fresh.
func (s *StatsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	now := s.now()
	byStatus, err := s.complaints.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	byCategory, err := s.complaints.CountByCategory(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	slaStats, err := s.complaints.SLAStats(ctx, now)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	stats := &DashboardStats{
		ByStatus:          byStatus,
		ByCategory:        byCategory,
		ResolvedWithinSLA: slaStats.ResolvedWithinSLA,
		ResolvedLate:      slaStats.ResolvedLate,
		OpenBreached:      slaStats.OpenBreached,
		GeneratedAt:       now,
	}
	if resolved := slaStats.ResolvedWithinSLA + slaStats.ResolvedLate; resolved > 0 {
		stats.SLAComplianceRate = float64(slaStats.ResolvedWithinSLA) / float64(resolved)
	}

	s.toCache(ctx, stats)
	return stats, nil
}

func (s *StatsService) fromCache(ctx context.Context) *DashboardStats {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, statsCacheKey).Result()
	if err != nil {
		return nil
	}
	var stats DashboardStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		s.logger.Warn("stats cache decode failed", zap.Error(err))
		return nil
	}
	return &stats
}

func (s *StatsService) toCache(ctx context.Context, stats *DashboardStats) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, statsCacheKey, data, statsCacheTTL).Err(); err != nil {
		s.logger.Warn("stats cache store failed", zap.Error(err))
	}
}
