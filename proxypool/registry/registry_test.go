package registry

import (
	"errors"
	"testing"

	"liuproxy_checker/proxypool/model"
)

// memStorage is an in-memory Storage for tests.
type memStorage struct {
	loaded  []model.ProxyDescriptor
	loadErr error
	saved   [][]model.ProxyDescriptor
}

func (m *memStorage) Load() ([]model.ProxyDescriptor, error) { return m.loaded, m.loadErr }
func (m *memStorage) Save(p []model.ProxyDescriptor) error {
	m.saved = append(m.saved, p)
	return nil
}

func TestAdd_RejectsMissingFields(t *testing.T) {
	r := New(nil)
	cases := [][3]string{
		{"", "8080", "HTTP"},
		{"1.2.3.4", "", "HTTP"},
		{"1.2.3.4", "8080", ""},
		{"1.2.3.4", "abc", "HTTP"},
		{"1.2.3.4", "8080", "FTP"},
	}
	for _, c := range cases {
		if _, ok := r.Add(c[0], c[1], c[2]); ok {
			t.Errorf("Add(%q, %q, %q) should be rejected", c[0], c[1], c[2])
		}
	}
	if r.Len() != 0 {
		t.Fatalf("Rejected entries must not be stored, got %d", r.Len())
	}
}

func TestAdd_AssignsStableIDs(t *testing.T) {
	r := New(nil)
	a, ok := r.Add("1.2.3.4", "8080", "http")
	if !ok {
		t.Fatal("Add() unexpectedly rejected a valid entry")
	}
	b, _ := r.Add("1.2.3.4", "8080", "http")
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("Expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
	if a.Kind != model.KindHTTP || a.Port != 8080 {
		t.Errorf("Unexpected descriptor: %+v", a)
	}

	got, err := r.Get(a.ID)
	if err != nil || got != a {
		t.Errorf("Get(%s) = %+v, %v", a.ID, got, err)
	}
}

func TestDelete_ByIDKeepsOrder(t *testing.T) {
	r := New(nil)
	a, _ := r.Add("10.0.0.1", "1", "SOCKS4")
	b, _ := r.Add("10.0.0.2", "2", "SOCKS5")
	c, _ := r.Add("10.0.0.3", "3", "HTTPS")

	if n := r.Delete([]string{b.ID, "unknown"}); n != 1 {
		t.Fatalf("Expected 1 deletion, got %d", n)
	}
	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].ID != a.ID || snap[1].ID != c.ID {
		t.Fatalf("Unexpected snapshot after delete: %+v", snap)
	}
	if _, err := r.Get(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for deleted id, got %v", err)
	}
}

func TestSnapshot_IsIsolatedFromLaterChanges(t *testing.T) {
	r := New(nil)
	a, _ := r.Add("10.0.0.1", "1", "HTTP")
	snap := r.Snapshot()

	r.Delete([]string{a.ID})
	r.Add("10.0.0.2", "2", "HTTP")

	if len(snap) != 1 || snap[0].ID != a.ID {
		t.Fatalf("Snapshot must not observe later changes, got %+v", snap)
	}
}

func TestLoad_AndPersistOnChange(t *testing.T) {
	store := &memStorage{loaded: []model.ProxyDescriptor{
		{ID: "keep-me", Host: "1.1.1.1", Port: 80, Kind: model.KindHTTP},
		{Host: "2.2.2.2", Port: 1080, Kind: model.KindSOCKS5},
		{Host: "", Port: 1, Kind: model.KindHTTP},
	}}
	r := New(store)
	if err := r.Load(); err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Expected 2 loaded proxies, got %d", len(snap))
	}
	if snap[0].ID != "keep-me" || snap[1].ID == "" {
		t.Errorf("Unexpected ids after load: %q, %q", snap[0].ID, snap[1].ID)
	}

	r.Add("3.3.3.3", "3128", "HTTP")
	if len(store.saved) != 1 || len(store.saved[0]) != 3 {
		t.Fatalf("Expected one save with 3 proxies, got %+v", store.saved)
	}
}

func TestLoad_ReplacesContents(t *testing.T) {
	store := &memStorage{loaded: []model.ProxyDescriptor{
		{Host: "1.1.1.1", Port: 80, Kind: model.KindHTTP},
		{Host: "2.2.2.2", Port: 1080, Kind: model.KindSOCKS5},
	}}
	r := New(store)
	for i := 0; i < 2; i++ {
		if err := r.Load(); err != nil {
			t.Fatalf("Load() returned an error: %v", err)
		}
	}
	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Host != "1.1.1.1" || snap[1].Host != "2.2.2.2" {
		t.Fatalf("Loading twice must not duplicate entries, got %+v", snap)
	}

	store.loadErr = errors.New("disk gone")
	if err := r.Load(); err == nil {
		t.Fatal("Expected the storage error")
	}
	if r.Len() != 2 {
		t.Errorf("A failed load must keep the current list, got %d entries", r.Len())
	}
}
