package collector

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/evanhu96/load-management-app/internal/conf"
	"github.com/evanhu96/load-management-app/internal/ingest"
	"github.com/evanhu96/load-management-app/internal/logger"
)

// Version is reported to the server in the identify handshake.
const Version = "1.0.0"

const (
	// debounceDelay lets scrapers finish writing before a file is read.
	debounceDelay = 2 * time.Second

	// connectionBackoff is the pause after the configured retries are
	// exhausted, before the connection loop starts over.
	connectionBackoff = time.Minute

	// batchPause spaces out consecutive batches from one file.
	batchPause = 100 * time.Millisecond

	maxRecentErrors = 50
)

// Stats is a snapshot of the collector's counters.
type Stats struct {
	TotalLoadsProcessed int64    `json:"totalLoadsProcessed"`
	LastProcessedAt     string   `json:"lastProcessedAt,omitempty"`
	WatchedFiles        []string `json:"watchedFiles"`
	Connected           bool     `json:"connected"`
	RecentErrors        []string `json:"recentErrors,omitempty"`
}

// Collector watches scraper output files and ships their loads to the
// server. Batches go out on the websocket for live dashboards and through
// the bulk REST endpoint as the authoritative write.
type Collector struct {
	cfg    *conf.CollectorSettings
	client *Client
	log    logger.Logger

	// debounce is overridable so tests do not wait out the write-settle
	// delay.
	debounce time.Duration

	mu            sync.Mutex
	conn          *ServerConn
	watched       map[string]struct{}
	lastProcessed map[string]time.Time
	timers        map[string]*time.Timer
	totalLoads    int64
	lastRun       time.Time
	recentErrors  []string
}

// New creates a collector. client may be shared with CLI health checks.
func New(cfg *conf.CollectorSettings, client *Client, log logger.Logger) *Collector {
	return &Collector{
		cfg:           cfg,
		client:        client,
		log:           log,
		debounce:      debounceDelay,
		watched:       make(map[string]struct{}),
		lastProcessed: make(map[string]time.Time),
		timers:        make(map[string]*time.Timer),
	}
}

// Run watches the configured paths and maintains the server connection
// until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	targets := c.resolveWatchTargets()
	if len(targets) == 0 {
		c.log.Warn("no valid watch paths found")
	}
	dirs := make(map[string]struct{})
	for _, target := range targets {
		dirs[filepath.Dir(target)] = struct{}{}
		c.mu.Lock()
		c.watched[target] = struct{}{}
		c.mu.Unlock()
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			c.log.Warn("cannot watch directory",
				logger.String("dir", dir),
				logger.Error(err))
		}
	}

	// Pick up whatever the scrapers wrote before we started.
	c.ProcessPending(ctx)

	go c.maintainConnection(ctx)

	for {
		select {
		case <-ctx.Done():
			c.disconnect()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			path := filepath.Clean(event.Name)
			if !c.isWatched(path) {
				continue
			}
			c.scheduleProcess(ctx, path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.log.Error("file watcher error", logger.Error(err))
			c.recordError(err)
		}
	}
}

// resolveWatchTargets keeps configured paths whose file or parent directory
// exists, so a path can be watched for later creation.
func (c *Collector) resolveWatchTargets() []string {
	var targets []string
	for _, path := range c.cfg.WatchPaths {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			targets = append(targets, abs)
			continue
		}
		if _, err := os.Stat(filepath.Dir(abs)); err == nil {
			targets = append(targets, abs)
		} else {
			c.log.Warn("watch path not accessible", logger.String("path", path))
		}
	}
	return targets
}

func (c *Collector) isWatched(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.watched[path]
	return ok
}

// scheduleProcess debounces rapid successive writes to one file.
func (c *Collector) scheduleProcess(ctx context.Context, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[path]; ok {
		timer.Reset(c.debounce)
		return
	}
	c.timers[path] = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		delete(c.timers, path)
		c.mu.Unlock()
		c.ProcessFile(ctx, path)
	})
}

// ProcessFile reads one file and ships its loads, skipping files whose
// modification time has not advanced since the last successful send.
func (c *Collector) ProcessFile(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Error("cannot stat file", logger.String("path", path), logger.Error(err))
			c.recordError(err)
		}
		return
	}

	c.mu.Lock()
	last, seen := c.lastProcessed[path]
	c.mu.Unlock()
	if seen && !info.ModTime().After(last) {
		c.log.Debug("file unchanged since last send", logger.String("path", path))
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.log.Error("cannot read file", logger.String("path", path), logger.Error(err))
		c.recordError(err)
		return
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		c.log.Warn("file is empty", logger.String("path", path))
		return
	}

	loads, err := ParseLoadFile(data, path)
	if err != nil {
		c.log.Error("cannot parse file", logger.String("path", path), logger.Error(err))
		c.recordError(err)
		return
	}
	if len(loads) == 0 {
		c.log.Warn("no valid loads in file", logger.String("path", path))
		return
	}

	if err := c.sendLoads(ctx, loads); err != nil {
		c.log.Error("failed to send loads",
			logger.String("path", path),
			logger.Int("count", len(loads)),
			logger.Error(err))
		c.recordError(err)
		return
	}

	c.mu.Lock()
	c.lastProcessed[path] = info.ModTime()
	c.totalLoads += int64(len(loads))
	c.lastRun = time.Now()
	c.mu.Unlock()

	c.log.Info("processed file",
		logger.String("file", filepath.Base(path)),
		logger.Int("loads", len(loads)))
}

// sendLoads ships loads in batches. The websocket push is best effort; the
// REST bulk import is the call that must succeed.
func (c *Collector) sendLoads(ctx context.Context, loads []*ingest.LoadInput) error {
	batchSize := c.cfg.BatchSize
	if batchSize < 1 {
		batchSize = len(loads)
	}

	for start := 0; start < len(loads); start += batchSize {
		end := min(start+batchSize, len(loads))
		batch := loads[start:end]

		if conn := c.currentConn(); conn != nil {
			if err := conn.PushLoads(batch); err != nil {
				c.log.Warn("websocket push failed, REST delivery still applies",
					logger.Error(err))
			}
		}

		if _, err := c.client.BulkImport(ctx, batch); err != nil {
			return err
		}

		if end < len(loads) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(batchPause):
			}
		}
	}
	return nil
}

// ProcessPending re-sends every watched file that exists on disk.
func (c *Collector) ProcessPending(ctx context.Context) {
	c.mu.Lock()
	paths := make([]string, 0, len(c.watched))
	for path := range c.watched {
		paths = append(paths, path)
	}
	c.mu.Unlock()

	for _, path := range paths {
		c.ProcessFile(ctx, path)
	}
}

// maintainConnection keeps the websocket to the server alive, retrying with
// the configured interval and backing off after repeated failures.
func (c *Collector) maintainConnection(ctx context.Context) {
	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := DialServer(ctx, c.cfg.ServerURL, Version,
			c.cfg.ConnectTimeout.Std(), c.log)
		if err != nil {
			failures++
			c.recordError(err)
			wait := c.cfg.RetryInterval.Std()
			if failures >= c.cfg.MaxRetries {
				c.log.Error("connection retries exhausted, backing off",
					logger.Int("attempts", failures),
					logger.Error(err))
				wait = connectionBackoff
				failures = 0
			} else {
				c.log.Warn("connection failed, retrying",
					logger.Int("attempt", failures),
					logger.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		failures = 0
		c.log.Info("connected to server", logger.String("url", c.cfg.ServerURL))
		conn.OnRefreshRequested = func() { c.ProcessPending(ctx) }
		c.setConn(conn)

		heartbeatDone := make(chan struct{})
		go c.heartbeatLoop(ctx, conn, heartbeatDone)

		if err := conn.Listen(ctx); err != nil {
			c.log.Warn("server connection lost", logger.Error(err))
			c.recordError(err)
		}
		close(heartbeatDone)
		c.setConn(nil)
		conn.Close()
	}
}

func (c *Collector) heartbeatLoop(ctx context.Context, conn *ServerConn, done <-chan struct{}) {
	interval := c.cfg.HeartbeatInterval.Std()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Heartbeat(c.Stats()); err != nil {
				c.log.Debug("heartbeat failed", logger.Error(err))
				return
			}
		}
	}
}

func (c *Collector) currentConn() *ServerConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Collector) setConn(conn *ServerConn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Collector) disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *Collector) recordError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recentErrors = append(c.recentErrors,
		time.Now().Format(time.RFC3339)+": "+err.Error())
	if len(c.recentErrors) > maxRecentErrors {
		c.recentErrors = c.recentErrors[len(c.recentErrors)-maxRecentErrors:]
	}
}

// Stats returns a snapshot of the collector's counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		TotalLoadsProcessed: c.totalLoads,
		Connected:           c.conn != nil,
		WatchedFiles:        make([]string, 0, len(c.watched)),
		RecentErrors:        append([]string(nil), c.recentErrors...),
	}
	for path := range c.watched {
		stats.WatchedFiles = append(stats.WatchedFiles, path)
	}
	if !c.lastRun.IsZero() {
		stats.LastProcessedAt = c.lastRun.Format(time.RFC3339)
	}
	return stats
}
