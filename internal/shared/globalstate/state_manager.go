package globalstate

import (
	"fmt"
	"sync"
	"time"
)

// RunStatus 是当前（或最近一次）验证运行的进度快照。
type RunStatus struct {
	RunID      string    `json:"run_id,omitempty"`
	Running    bool      `json:"running"`
	Total      int       `json:"total"`
	Published  int       `json:"published"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// String renders the status line shown by the hosts.
func (s RunStatus) String() string {
	switch {
	case s.RunID == "":
		return "Idle"
	case s.Running:
		return fmt.Sprintf("Running %d/%d", s.Published, s.Total)
	default:
		return fmt.Sprintf("Finished %d proxies: %d ok, %d failed", s.Total, s.Succeeded, s.Failed)
	}
}

// StatusManager 结构体用于管理运行状态。
// 它使用 RWMutex 来保护对状态的并发读写。
type StatusManager struct {
	mu     sync.RWMutex
	status RunStatus
}

func NewStatusManager() *StatusManager {
	return &StatusManager{}
}

// Begin resets the counters for a new run.
func (sm *StatusManager) Begin(runID string, total int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.status = RunStatus{
		RunID:     runID,
		Running:   total > 0,
		Total:     total,
		StartedAt: time.Now(),
	}
	if total == 0 {
		sm.status.FinishedAt = sm.status.StartedAt
	}
}

// Record counts one published result of run runID. Results of any other run
// are ignored. The run is finished once every result has been published.
func (sm *StatusManager) Record(runID string, succeeded bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if !sm.status.Running || runID != sm.status.RunID {
		return
	}
	sm.status.Published++
	if succeeded {
		sm.status.Succeeded++
	} else {
		sm.status.Failed++
	}
	if sm.status.Published >= sm.status.Total {
		sm.status.Running = false
		sm.status.FinishedAt = time.Now()
	}
}

// Get 方法用于安全地读取状态。
func (sm *StatusManager) Get() RunStatus {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.status
}
