package core

import (
	"encoding/json"
	"fmt"
)

// Stats summarizes the engine's live pools and connection count, logged
// periodically rather than exposed over HTTP — the spec names no metrics
// endpoint, so this is pull-by-log, not push-by-request.
type Stats struct {
	Connections int                 `json:"connections"`
	Pool        ConnectionPoolStats `json:"connection_pool"`
	Workers     WorkerPoolStats     `json:"worker_pool"`
}

type ConnectionPoolStats struct {
	Gets    uint64  `json:"gets"`
	Puts    uint64  `json:"puts"`
	HitRate float64 `json:"hit_rate"`
}

type WorkerPoolStats struct {
	NumWorkers     int    `json:"num_workers"`
	TasksSubmitted uint64 `json:"tasks_submitted"`
	TasksCompleted uint64 `json:"tasks_completed"`
	TasksPending   uint64 `json:"tasks_pending"`
}

func (e *Engine) GetStats() Stats {
	gets, puts, hitRate := e.connectionPool.Stats()
	ws := e.workerPool.Stats()
	return Stats{
		Connections: e.connectionCount(),
		Pool: ConnectionPoolStats{
			Gets:    gets,
			Puts:    puts,
			HitRate: hitRate,
		},
		Workers: WorkerPoolStats{
			NumWorkers:     ws.NumWorkers,
			TasksSubmitted: ws.TasksSubmitted,
			TasksCompleted: ws.TasksCompleted,
			TasksPending:   ws.TasksPending,
		},
	}
}

func (e *Engine) StatsJSON() string {
	data, _ := json.MarshalIndent(e.GetStats(), "", "  ")
	return string(data)
}

func (e *Engine) StatsText() string {
	s := e.GetStats()
	return fmt.Sprintf("connections=%d pool_hit_rate=%.2f%% workers=%d tasks_pending=%d",
		s.Connections, s.Pool.HitRate*100, s.Workers.NumWorkers, s.Workers.TasksPending)
}
