package services

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/infrastructure/config"
	"github.com/tasq/core/internal/infrastructure/logger"
	"github.com/tasq/core/internal/infrastructure/metrics"
	"github.com/tasq/core/internal/ports"
)

const (
	analyticsWindow = 7 * 24 * time.Hour

	statsKeyPrefix     = "stats:"
	analyticsKeyPrefix = "analytics:"
)

// AnalyticsAggregator computes the dashboard aggregates of one owner.
// Results are cached per owner and dropped by Invalidate on every write.
type AnalyticsAggregator struct {
	tasks ports.TaskRepository
	cache ports.CacheRepository
	// A result read before another instance's write can still be stored after
	// that instance invalidates; such staleness lasts at most ttl.
	ttl time.Duration

	// bumped by Invalidate; a result computed across a bump is not cached
	generation atomic.Uint64

	location *time.Location
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewAnalyticsAggregator creates a new analytics aggregator
func NewAnalyticsAggregator(tasks ports.TaskRepository, cache ports.CacheRepository, cfg config.AnalyticsConfig, m *metrics.Metrics, logger *logger.Logger) *AnalyticsAggregator {
	return &AnalyticsAggregator{
		tasks:    tasks,
		cache:    cache,
		ttl:      cfg.CacheTTL,
		location: cfg.Location(),
		now:      time.Now,
		metrics:  m,
		logger:   logger.WithComponent("analytics"),
	}
}

// Compute returns the AnalyticsSnapshot of the owner's non-deleted tasks
func (a *AnalyticsAggregator) Compute(ctx context.Context, ownerID uuid.UUID) (*entities.AnalyticsSnapshot, error) {
	key := analyticsKeyPrefix + ownerID.String()

	var cached entities.AnalyticsSnapshot
	if a.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	gen := a.generation.Load()
	samples, err := a.tasks.StatSamples(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task samples: %w", err)
	}

	snapshot := BuildSnapshot(samples, a.now(), a.location)
	a.toCache(ctx, gen, key, snapshot)

	return snapshot, nil
}

// DashboardStats returns the per-status counters of the owner's non-deleted tasks
func (a *AnalyticsAggregator) DashboardStats(ctx context.Context, ownerID uuid.UUID) (*entities.DashboardStats, error) {
	key := statsKeyPrefix + ownerID.String()

	var cached entities.DashboardStats
	if a.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	gen := a.generation.Load()
	counts, err := a.tasks.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}

	stats := &entities.DashboardStats{
		Pending:    counts[entities.TaskStatusPending],
		InProgress: counts[entities.TaskStatusInProgress],
		Completed:  counts[entities.TaskStatusCompleted],
	}
	stats.Total = stats.Pending + stats.InProgress + stats.Completed
	a.toCache(ctx, gen, key, stats)

	return stats, nil
}

// Invalidate drops the cached aggregates of an owner. Aggregates computed
// concurrently with the call are not cached afterwards.
func (a *AnalyticsAggregator) Invalidate(ctx context.Context, ownerID uuid.UUID) {
	a.generation.Add(1)

	id := ownerID.String()
	if err := a.cache.Delete(ctx, statsKeyPrefix+id, analyticsKeyPrefix+id); err != nil {
		a.logger.Warnw("Failed to invalidate analytics cache", "owner_id", id, "error", err)
	}
}

func (a *AnalyticsAggregator) fromCache(ctx context.Context, key string, dest interface{}) bool {
	hit, err := a.cache.Get(ctx, key, dest)
	if err != nil {
		a.logger.Warnw("Cache read failed", "key", key, "error", err)
		return false
	}
	a.metrics.CacheLookup(hit)
	return hit
}

func (a *AnalyticsAggregator) toCache(ctx context.Context, gen uint64, key string, value interface{}) {
	if a.ttl <= 0 || a.generation.Load() != gen {
		return
	}
	if err := a.cache.Set(ctx, key, value, a.ttl); err != nil {
		a.logger.Warnw("Cache write failed", "key", key, "error", err)
	}
}

// BuildSnapshot aggregates samples as of now. Weekly buckets are keyed by the
// weekday of createdAt in loc, so two Mondays in the window share one bucket.
// avgCompletionTime treats updatedAt of a completed task as its completion time.
func BuildSnapshot(samples []entities.TaskStatSample, now time.Time, loc *time.Location) *entities.AnalyticsSnapshot {
	if loc == nil {
		loc = time.UTC
	}

	statusCounts := make(map[entities.TaskStatus]int, len(entities.TaskStatuses))
	priorityCounts := make(map[entities.Priority]int, len(entities.Priorities))

	var weekly [7]entities.WeekdayActivity
	for d := time.Sunday; d <= time.Saturday; d++ {
		weekly[d].Day = d.String()[:3]
	}

	windowStart := now.Add(-analyticsWindow)
	var completedDays float64
	var completed int

	for _, s := range samples {
		statusCounts[s.Status]++
		priorityCounts[s.Priority]++

		if s.Status == entities.TaskStatusCompleted {
			completed++
			completedDays += s.UpdatedAt.Sub(s.CreatedAt).Hours() / 24
		}

		if s.CreatedAt.Before(windowStart) || s.CreatedAt.After(now) {
			continue
		}
		day := s.CreatedAt.In(loc).Weekday()
		weekly[day].Created++
		if s.Status == entities.TaskStatusCompleted {
			weekly[day].Completed++
		}
	}

	snapshot := &entities.AnalyticsSnapshot{
		StatusData:   make([]entities.ChartPoint, 0, len(entities.TaskStatuses)),
		PriorityData: make([]entities.ChartPoint, 0, len(entities.Priorities)),
		WeeklyData:   weekly[:],
	}

	for _, st := range entities.TaskStatuses {
		snapshot.StatusData = append(snapshot.StatusData, entities.ChartPoint{Name: st.Label(), Value: statusCounts[st]})
	}
	for _, p := range entities.Priorities {
		snapshot.PriorityData = append(snapshot.PriorityData, entities.ChartPoint{Name: p.Label(), Value: priorityCounts[p]})
	}
	for _, w := range weekly {
		snapshot.TasksThisWeek += w.Created
	}

	if total := len(samples); total > 0 {
		snapshot.CompletionRate = int(math.Round(100 * float64(completed) / float64(total)))
	}
	if completed > 0 {
		snapshot.AvgCompletionTime = math.Round(completedDays/float64(completed)*10) / 10
	}

	return snapshot
}
