package sink

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"liuproxy_checker/proxypool/model"
)

func TestDrain_EmptyIsNoop(t *testing.T) {
	s := New()
	if got := s.Drain(); got != nil {
		t.Fatalf("Expected nil from an empty sink, got %+v", got)
	}
}

func TestPushDrain_PreservesOrder(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		s.Push(model.ValidationResult{ProxyID: fmt.Sprint(i)})
	}
	got := s.Drain()
	if len(got) != 3 || got[0].ProxyID != "0" || got[2].ProxyID != "2" {
		t.Fatalf("Unexpected drain: %+v", got)
	}
	if s.Len() != 0 || s.Drain() != nil {
		t.Error("Drain must empty the sink")
	}
}

func TestPush_ManyProducersNeverBlock(t *testing.T) {
	s := New()
	const producers, each = 50, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				s.Push(model.ValidationResult{ProxyID: fmt.Sprintf("%d-%d", p, i)})
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Producers blocked while nobody was consuming")
	}

	seen := make(map[string]bool)
	for _, r := range s.Drain() {
		seen[r.ProxyID] = true
	}
	if len(seen) != producers*each {
		t.Fatalf("Expected %d distinct results, got %d", producers*each, len(seen))
	}
}

func TestReady_SignalsAfterPush(t *testing.T) {
	s := New()
	select {
	case <-s.Ready():
		t.Fatal("Ready fired before any push")
	default:
	}

	s.Push(model.ValidationResult{})
	s.Push(model.ValidationResult{})
	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("Ready did not fire after push")
	}
	if len(s.Drain()) != 2 {
		t.Error("Coalesced signals must not lose results")
	}
}
