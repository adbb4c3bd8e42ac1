package manager

import (
	"fmt"
	"sync"

	"liuproxy_checker/internal/shared/globalstate"
	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/proxypool/dispatcher"
	"liuproxy_checker/proxypool/model"
	"liuproxy_checker/proxypool/registry"
)

// Manager 是代理验证模块的总控制器：维护代理列表、结果表中的行，
// 并在每轮开始时把快照交给 Dispatcher。
type Manager struct {
	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
	display    model.Display
	status     *globalstate.StatusManager

	// mu 串行化 StartRun / DeleteProxies 对行表的修改
	mu   sync.Mutex
	rows map[string]string // proxy id -> row id of the latest run
}

// NewManager wires the registry, dispatcher and display together.
func NewManager(reg *registry.Registry, disp *dispatcher.Dispatcher, display model.Display, status *globalstate.StatusManager) *Manager {
	if status == nil {
		status = globalstate.NewStatusManager()
	}
	m := &Manager{
		registry:   reg,
		dispatcher: disp,
		display:    display,
		status:     status,
		rows:       make(map[string]string),
	}
	disp.OnRunStart(func(run *dispatcher.Run) {
		m.status.Begin(run.ID, run.Total())
	})
	return m
}

// LoadProxies 从存储中加载代理列表。
func (m *Manager) LoadProxies() error {
	if err := m.registry.Load(); err != nil {
		return fmt.Errorf("failed to load proxy list: %w", err)
	}
	return nil
}

func (m *Manager) ListProxies() []model.ProxyDescriptor {
	return m.registry.Snapshot()
}

// AddProxy validates and registers a proxy. Invalid input is rejected with ok=false.
func (m *Manager) AddProxy(host, port, kind string) (model.ProxyDescriptor, bool) {
	d, ok := m.registry.Add(host, port, kind)
	if !ok {
		l := logger.WithComponent("ProxyPool/Manager")
		l.Debug().
			Str("host", host).Str("port", port).Str("kind", kind).
			Msg("Rejected invalid proxy.")
	}
	return d, ok
}

// DeleteProxies removes proxies by id, together with their rows from the last run.
// In-flight validations are not cancelled; their late results are dropped by the display.
func (m *Manager) DeleteProxies(ids []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.registry.Delete(ids)
	for _, id := range ids {
		if rowID, ok := m.rows[id]; ok {
			m.display.DeleteRow(rowID)
			delete(m.rows, id)
		}
	}
	l := logger.WithComponent("ProxyPool/Manager")
	l.Info().Int("deleted", n).Msg("Proxies deleted.")
	return n
}

// StartRun snapshots the registry, replaces the previous run's rows with fresh
// "testing" rows and dispatches the snapshot. It returns immediately.
func (m *Manager) StartRun() (*dispatcher.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if active := m.dispatcher.Active(); active != nil {
		select {
		case <-active.Done():
		default:
			return nil, dispatcher.ErrRunInProgress
		}
	}

	snapshot := m.registry.Snapshot()

	for id, rowID := range m.rows {
		m.display.DeleteRow(rowID)
		delete(m.rows, id)
	}

	tasks := make([]dispatcher.Task, 0, len(snapshot))
	for _, d := range snapshot {
		rowID := m.display.InsertRow(d)
		m.rows[d.ID] = rowID
		tasks = append(tasks, dispatcher.Task{Descriptor: d, RowID: rowID})
	}

	return m.dispatcher.StartRun(tasks)
}

// OnPublished records a result the publisher has delivered to the display.
func (m *Manager) OnPublished(r model.ValidationResult) {
	m.status.Record(r.RunID, r.Succeeded())
}

func (m *Manager) Status() globalstate.RunStatus {
	return m.status.Get()
}
