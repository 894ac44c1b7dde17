// Package preview implements watch mode: rebuild on source changes plus a
// small status HTTP server.
package preview

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/adocbuilder/internal/config"
	"git.home.luguber.info/inful/adocbuilder/internal/history"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
	"git.home.luguber.info/inful/adocbuilder/internal/observability"
	"git.home.luguber.info/inful/adocbuilder/internal/orchestrator"
)

const debounceWindow = 300 * time.Millisecond

// buildState tracks the most recent invocation for status display.
type buildState struct {
	mu           sync.RWMutex
	lastResult   *orchestrator.Result
	lastError    error
	hasGoodBuild bool
	rebuilds     int
}

func (s *buildState) record(res *orchestrator.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResult = res
	s.lastError = err
	s.rebuilds++
	if err == nil {
		s.hasGoodBuild = true
	}
}

func (s *buildState) snapshot() (res *orchestrator.Result, err error, good bool, rebuilds int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult, s.lastError, s.hasGoodBuild, s.rebuilds
}

// Watch runs an initial conversion, then watches the source directory and
// reconverts on changes until ctx is cancelled. When addr is non-empty a
// status server is exposed there.
func Watch(ctx context.Context, cfg *config.Config, svc orchestrator.Service, addr string) error {
	return WatchWith(ctx, cfg, svc, addr, nil, nil)
}

// WatchWith is Watch with an optional invocation ledger and Prometheus
// registry wired into the status server.
func WatchWith(ctx context.Context, cfg *config.Config, svc orchestrator.Service, addr string, store *history.Store, reg *prom.Registry) error {
	log := observability.Log(ctx)

	absSrc, err := filepath.Abs(cfg.Sources.Directory)
	if err != nil {
		return fmt.Errorf("resolve source dir: %w", err)
	}
	if st, statErr := os.Stat(absSrc); statErr != nil || !st.IsDir() {
		return fmt.Errorf("source dir not found or not a directory: %s", absSrc)
	}

	state := &buildState{}
	runOnce := func() {
		res, runErr := svc.Run(ctx, orchestrator.Request{Config: cfg})
		state.record(res, runErr)
		if runErr != nil {
			log.Warn("conversion failed", logfields.Error(runErr))
		}
	}
	runOnce()

	var server *Server
	if addr != "" {
		server = NewServer(addr, cfg, state)
		if store != nil {
			server.WithHistory(store)
		}
		if reg != nil {
			server.WithMetrics(reg)
		}
		if err := server.Start(); err != nil {
			return err
		}
		log.Info("status server listening", logfields.Path(addr))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := addDirsRecursive(watcher, absSrc); err != nil {
		return err
	}

	rebuildReq, trigger := debouncer()
	startRebuildWorker(ctx, rebuildReq, runOnce)

	for {
		select {
		case <-ctx.Done():
			return shutdown(server)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			handleEvent(watcher, ev, trigger)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", logfields.Error(werr))
		}
	}
}

// debouncer coalesces change bursts into a single rebuild request.
func debouncer() (chan struct{}, func()) {
	var mu sync.Mutex
	var timer *time.Timer
	rebuildReq := make(chan struct{}, 1)

	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceWindow, func() {
			select {
			case rebuildReq <- struct{}{}:
			default:
			}
		})
	}
	return rebuildReq, trigger
}

// startRebuildWorker processes rebuild requests one at a time. Requests that
// arrive during a run collapse into exactly one follow-up.
func startRebuildWorker(ctx context.Context, rebuildReq chan struct{}, run func()) {
	var mu sync.Mutex
	running := false
	pending := false

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-rebuildReq:
				mu.Lock()
				if running {
					pending = true
					mu.Unlock()
					continue
				}
				running = true
				mu.Unlock()

				run()

				mu.Lock()
				running = false
				if pending {
					pending = false
					mu.Unlock()
					select {
					case rebuildReq <- struct{}{}:
					default:
					}
				} else {
					mu.Unlock()
				}
			}
		}
	}()
}

func handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event, trigger func()) {
	if shouldIgnoreEvent(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(watcher, ev.Name)
		}
	}
	trigger()
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") && path != root {
				return filepath.SkipDir
			}
			_ = w.Add(path)
		}
		return nil
	})
}

// shouldIgnoreEvent filters events that must not trigger rebuilds.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}

	// Editor temp and swap files.
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		(strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")) {
		return true
	}

	return base == "Thumbs.db"
}

// shutdown stops the status server. The rebuild channel stays open: a
// debounce timer may still fire after cancellation, and its send must land in
// the channel buffer instead of panicking. The worker exits via ctx.
func shutdown(server *Server) error {
	if server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}
