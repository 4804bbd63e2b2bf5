package feed

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/focfleet/focfleet-go/pkg/clock"
	"github.com/focfleet/focfleet-go/pkg/log"
)

// DefaultPollInterval is how often the watcher re-reads the targets file.
const DefaultPollInterval = 500 * time.Millisecond

// Update is one detected change of the watched targets file.
type Update struct {
	// Targets is the parsed file content.
	Targets *Targets

	// Hash is the hex BLAKE2b-256 digest of the file bytes.
	Hash string
}

// WatcherConfig configures a targets file watcher.
type WatcherConfig struct {
	// Path of the targets file. Required.
	Path string

	// Interval between polls. Zero uses DefaultPollInterval.
	Interval time.Duration

	// Clock abstracts poll timing. Nil uses the system clock.
	Clock clock.Clock

	// Logger receives feed state change and error events.
	Logger log.Logger

	// OnUpdate is called inline for each detected change. The next
	// poll happens only after it returns, so a change made while a
	// run is in flight is picked up afterwards, not concurrently.
	OnUpdate func(Update)

	// OnError is called for files that changed but failed to parse.
	OnError func(error)
}

// Watcher polls one targets file and reports content changes.
// A change is a new BLAKE2b digest of the file bytes; a missing file
// is not an error, it simply never matches.
type Watcher struct {
	config   WatcherConfig
	interval time.Duration
	clk      clock.Clock
	logger   log.Logger

	mu           sync.Mutex
	lastHash     string
	parseFailure int
}

// NewWatcher creates a watcher for the configured path.
func NewWatcher(config WatcherConfig) *Watcher {
	w := &Watcher{
		config:   config,
		interval: config.Interval,
		clk:      config.Clock,
		logger:   config.Logger,
	}
	if w.interval <= 0 {
		w.interval = DefaultPollInterval
	}
	if w.clk == nil {
		w.clk = clock.System{}
	}
	if w.logger == nil {
		w.logger = log.NoopLogger{}
	}
	return w
}

// Poll reads the file once and returns an Update when the content
// hash moved. A missing file or unchanged content returns (nil, nil).
// A file that changed but does not parse returns the parse error; its
// hash is still recorded, so the same broken content is reported once
// rather than every interval.
func (w *Watcher) Poll() (*Update, error) {
	data, err := os.ReadFile(w.config.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	sum := blake2b.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	w.mu.Lock()
	if hash == w.lastHash {
		w.mu.Unlock()
		return nil, nil
	}
	previous := w.lastHash
	w.lastHash = hash
	w.mu.Unlock()

	w.logChange(previous, hash)

	targets, err := parseBytes(w.config.Path, data)
	if err != nil {
		w.mu.Lock()
		w.parseFailure++
		w.mu.Unlock()
		w.logParseError(err)
		return nil, err
	}

	return &Update{Targets: targets, Hash: hash}, nil
}

// Run polls until ctx is cancelled, dispatching each parsed change to
// OnUpdate and each parse failure to OnError. The first poll happens
// immediately, so an existing file triggers a run at startup.
func (w *Watcher) Run(ctx context.Context) {
	for {
		update, err := w.Poll()
		switch {
		case err != nil:
			if w.config.OnError != nil {
				w.config.OnError(err)
			}
		case update != nil:
			if w.config.OnUpdate != nil {
				w.config.OnUpdate(*update)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-w.clk.After(w.interval):
		}
	}
}

// ParseFailures returns how many changed files failed to parse.
func (w *Watcher) ParseFailures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.parseFailure
}

// LastHash returns the most recently recorded content hash.
func (w *Watcher) LastHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

func (w *Watcher) logChange(oldHash, newHash string) {
	w.logger.Log(log.Event{
		Timestamp: w.clk.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerFleet,
		Category:  log.CategoryState,
		LocalRole: log.RoleController,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityFeed,
			OldState: shortHash(oldHash),
			NewState: shortHash(newHash),
			Reason:   w.config.Path,
		},
	})
}

func (w *Watcher) logParseError(err error) {
	w.logger.Log(log.Event{
		Timestamp: w.clk.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerFleet,
		Category:  log.CategoryError,
		LocalRole: log.RoleController,
		Error: &log.ErrorEventData{
			Layer:   log.LayerFleet,
			Message: err.Error(),
			Context: "parse targets file",
		},
	})
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
