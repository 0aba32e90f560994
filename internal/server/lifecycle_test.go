package server

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type mockService struct {
	started atomic.Bool
	stopped atomic.Bool
	startFn func() error
}

func (m *mockService) Start() error {
	m.started.Store(true)
	if m.startFn != nil {
		return m.startFn()
	}
	// Block until stopped
	for !m.stopped.Load() {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (m *mockService) Stop() {
	m.stopped.Store(true)
}

func TestLifecycleStartsAndStopsServices(t *testing.T) {
	logger := zaptest.NewLogger(t)
	lc := NewLifecycle(logger)

	svc1 := &mockService{}
	svc2 := &mockService{}

	lc.Add("svc1", svc1)
	lc.Add("svc2", svc2)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- lc.Run(ctx)
	}()

	// Wait for services to start
	deadline := time.After(2 * time.Second)
	for {
		if svc1.started.Load() && svc2.started.Load() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("services did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	// Trigger shutdown
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	assert.True(t, svc1.stopped.Load())
	assert.True(t, svc2.stopped.Load())
}

type orderedService struct {
	name  string
	order *[]string
	mu    *sync.Mutex
	done  chan struct{}
}

func (s *orderedService) Start() error {
	<-s.done
	return nil
}

func (s *orderedService) Stop() {
	s.mu.Lock()
	*s.order = append(*s.order, s.name)
	s.mu.Unlock()
	close(s.done)
}

func TestLifecycleStopsInReverseOrder(t *testing.T) {
	logger := zaptest.NewLogger(t)
	lc := NewLifecycle(logger)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"storage", "core", "acceptor"} {
		lc.Add(name, &orderedService{name: name, order: &order, mu: &mu, done: make(chan struct{})})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"acceptor", "core", "storage"}, order,
		"services must stop in reverse registration order")
}

func TestLifecycleShutdownIsIdempotent(t *testing.T) {
	logger := zaptest.NewLogger(t)
	lc := NewLifecycle(logger)

	stops := 0
	lc.Add("svc", &FuncService{
		StartFn: func() error { return nil },
		StopFn:  func() { stops++ },
	})

	lc.Shutdown()
	lc.Shutdown()
	assert.Equal(t, 1, stops)
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false

	svc := &FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() {
			stopped = true
		},
	}

	err := svc.Start()
	assert.NoError(t, err)
	assert.True(t, started)

	svc.Stop()
	assert.True(t, stopped)
}
