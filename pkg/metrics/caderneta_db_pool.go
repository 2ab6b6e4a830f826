package metrics

import (
	"database/sql"
	"time"
)

// PoolHealthStatus grades connection pool pressure.
type PoolHealthStatus string

const (
	PoolHealthy   PoolHealthStatus = "healthy"
	PoolDegraded  PoolHealthStatus = "degraded"
	PoolUnhealthy PoolHealthStatus = "unhealthy"
)

// DBPoolHealth summarizes database/sql pool usage.
type DBPoolHealth struct {
	Status      PoolHealthStatus `json:"status"`
	Open        int              `json:"open"`
	InUse       int              `json:"in_use"`
	Idle        int              `json:"idle"`
	MaxOpen     int              `json:"max_open"`
	WaitCount   int64            `json:"wait_count"`
	WaitMillis  int64            `json:"wait_ms"`
	Utilization float64          `json:"utilization"`
}

// AssessDBPool grades a database/sql pool by utilization and wait time.
func AssessDBPool(stats sql.DBStats) DBPoolHealth {
	h := DBPoolHealth{
		Status:     PoolHealthy,
		Open:       stats.OpenConnections,
		InUse:      stats.InUse,
		Idle:       stats.Idle,
		MaxOpen:    stats.MaxOpenConnections,
		WaitCount:  stats.WaitCount,
		WaitMillis: stats.WaitDuration.Milliseconds(),
	}
	if stats.MaxOpenConnections > 0 {
		h.Utilization = float64(stats.InUse) / float64(stats.MaxOpenConnections)
	}
	switch {
	case h.Utilization >= 0.95:
		h.Status = PoolUnhealthy
	case h.Utilization >= 0.80:
		h.Status = PoolDegraded
	case stats.WaitCount > 0 && stats.WaitDuration > 5*time.Second:
		h.Status = PoolDegraded
	}
	return h
}
