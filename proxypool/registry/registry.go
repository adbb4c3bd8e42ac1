package registry

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/proxypool/model"
)

// ErrNotFound is returned when an id does not name a registered proxy.
var ErrNotFound = errors.New("proxy not found")

// Storage 接口定义了代理列表持久化的行为（只保存代理列表，不保存测试结果）。
type Storage interface {
	Load() ([]model.ProxyDescriptor, error)
	Save(proxies []model.ProxyDescriptor) error
}

// Registry 是内存中的代理列表，保持添加顺序。
type Registry struct {
	storage Storage
	proxies map[string]model.ProxyDescriptor
	order   []string
	mu      sync.RWMutex
}

// New creates an empty registry. storage may be nil.
func New(storage Storage) *Registry {
	return &Registry{
		storage: storage,
		proxies: make(map[string]model.ProxyDescriptor),
	}
}

// Load 从存储加载代理列表并替换当前内容。已有 ID 的条目保持原 ID。
// A storage error leaves the registry unchanged.
func (r *Registry) Load() error {
	if r.storage == nil {
		return nil
	}
	l := logger.WithComponent("ProxyPool/Registry")

	loaded, err := r.storage.Load()
	if err != nil {
		return err
	}

	proxies := make(map[string]model.ProxyDescriptor, len(loaded))
	order := make([]string, 0, len(loaded))
	for _, d := range loaded {
		if d.Host == "" || d.Kind == "" {
			continue
		}
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if _, exists := proxies[d.ID]; exists {
			continue
		}
		proxies[d.ID] = d
		order = append(order, d.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.proxies = proxies
	r.order = order
	l.Info().Int("count", len(r.order)).Msg("Proxy list loaded.")
	return nil
}

// Add registers a proxy from raw user input. A missing or unparseable host,
// port or kind is silently rejected: ok is false and nothing changes.
func (r *Registry) Add(host, port, kind string) (model.ProxyDescriptor, bool) {
	l := logger.WithComponent("ProxyPool/Registry")

	host = strings.TrimSpace(host)
	p, portOK := model.ParsePort(port)
	k, kindOK := model.ParseKind(kind)
	if host == "" || !portOK || !kindOK {
		l.Debug().Str("host", host).Str("port", port).Str("kind", kind).Msg("Rejected incomplete proxy entry.")
		return model.ProxyDescriptor{}, false
	}

	d := model.ProxyDescriptor{
		ID:   uuid.NewString(),
		Host: host,
		Port: p,
		Kind: k,
	}

	r.mu.Lock()
	r.proxies[d.ID] = d
	r.order = append(r.order, d.ID)
	r.mu.Unlock()

	l.Info().Str("proxy_id", d.ID).Str("proxy", d.URL()).Msg("Proxy added.")
	r.persist()
	return d, true
}

// Get returns the descriptor with the given id.
func (r *Registry) Get(id string) (model.ProxyDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.proxies[id]
	if !ok {
		return model.ProxyDescriptor{}, ErrNotFound
	}
	return d, nil
}

// Delete removes proxies by id and returns how many were removed.
// In-flight validations of removed proxies are not affected.
func (r *Registry) Delete(ids []string) int {
	l := logger.WithComponent("ProxyPool/Registry")

	r.mu.Lock()
	deleted := 0
	for _, id := range ids {
		if _, exists := r.proxies[id]; exists {
			delete(r.proxies, id)
			deleted++
		}
	}
	if deleted > 0 {
		kept := r.order[:0]
		for _, id := range r.order {
			if _, ok := r.proxies[id]; ok {
				kept = append(kept, id)
			}
		}
		r.order = kept
	}
	r.mu.Unlock()

	l.Info().Int("requested", len(ids)).Int("deleted_count", deleted).Msg("Deletion complete.")
	if deleted > 0 {
		r.persist()
	}
	return deleted
}

// Snapshot returns a copy of all proxies in insertion order.
// A validation run works on the snapshot, so later changes only affect the next run.
func (r *Registry) Snapshot() []model.ProxyDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.ProxyDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.proxies[id])
	}
	return out
}

// Len returns the number of registered proxies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) persist() {
	if r.storage == nil {
		return
	}
	if err := r.storage.Save(r.Snapshot()); err != nil {
		l := logger.WithComponent("ProxyPool/Registry")
		l.Error().Err(err).Msg("Failed to save proxy list.")
	}
}
