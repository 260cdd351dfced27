package models

import "time"

// SystemMetrics is a point-in-time snapshot served by the metrics summary endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CheckIns                 uint64    `json:"check_ins"`
	CheckInsRejected         uint64    `json:"check_ins_rejected"`
	SessionsStarted          uint64    `json:"sessions_started"`
	SessionsReaped           uint64    `json:"sessions_reaped"`
	SessionsOpen             int64     `json:"sessions_open"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
