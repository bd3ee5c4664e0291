package tasks

import (
	"context"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/romdo/go-debounce"
	"golang.org/x/time/rate"
)

const (
	DefaultPageSize        = 100
	DefaultBatchLimit      = 10
	DefaultPollInterval    = 12 * time.Second
	DefaultRefreshDebounce = 1500 * time.Millisecond
	DefaultBulkRateLimit   = 5.0
)

// ActivityRecorder receives a summary of every finished foreground run.
type ActivityRecorder interface {
	Record(ctx context.Context, summary models.ActivitySummary)
}

// Options configures an [Orchestrator]. Zero values select the defaults.
type Options struct {
	PageSize        int
	BatchLimit      int
	PollInterval    time.Duration
	RefreshDebounce time.Duration
	BulkRateLimit   float64 // requests per second, negative disables pacing
	Logger          *log.Logger
	Recorder        ActivityRecorder
}

// OptionsFromConfig maps the [enrichment] config section to [Options].
//
// A bulk_rate_limit of 0 in the file means unpaced.
func OptionsFromConfig(cfg shared.EnrichmentConfig, logger *log.Logger) Options {
	bulkRate := cfg.BulkRateLimit
	if bulkRate == 0 {
		bulkRate = -1
	}
	return Options{
		PageSize:        cfg.PageSize,
		BatchLimit:      cfg.BatchLimit,
		PollInterval:    cfg.PollInterval(),
		RefreshDebounce: cfg.RefreshDebounce(),
		BulkRateLimit:   bulkRate,
		Logger:          logger,
	}
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.BatchLimit <= 0 {
		o.BatchLimit = DefaultBatchLimit
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.RefreshDebounce <= 0 {
		o.RefreshDebounce = DefaultRefreshDebounce
	}
	if o.BulkRateLimit == 0 {
		o.BulkRateLimit = DefaultBulkRateLimit
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(io.Discard)
	}
	return o
}

// Orchestrator keeps a local task list in sync with the remote enrichment queue.
//
// Refresh, batch processing and bulk actions each have a busy flag; a call made while its flag
// is set is dropped, not queued. All methods are safe for concurrent use.
type Orchestrator struct {
	svc     services.EnrichmentService
	opts    Options
	logger  *log.Logger
	store   *Store
	cache   *CompareCache
	limiter *rate.Limiter

	refreshing     atomic.Bool
	loading        atomic.Bool
	processing     atomic.Bool
	bulkBusy       atomic.Bool
	updatesPending atomic.Bool
	visible        atomic.Bool
	closed         atomic.Bool

	mu      sync.Mutex
	actions map[string]models.Action
	bulkIDs []string
	subs    map[int]chan Update
	nextSub int

	debounceMu     sync.Mutex
	debounced      func()
	cancelDebounce func()
	debouncePaused int    // foreground operations holding the debounce off
	debounceGen    uint64 // bumped when the poller stops; stale flushes do not re-arm

	pollMu   sync.Mutex
	pollStop chan struct{}
	pollDone chan struct{}
}

// New creates an orchestrator over svc. The view starts visible and the poller stopped.
func New(svc services.EnrichmentService, opts Options) *Orchestrator {
	opts = opts.withDefaults()

	limit := rate.Inf
	if opts.BulkRateLimit > 0 {
		limit = rate.Limit(opts.BulkRateLimit)
	}

	o := &Orchestrator{
		svc:     svc,
		opts:    opts,
		logger:  shared.WithLogger(opts.Logger, "component", "tasks"),
		store:   NewStore(),
		cache:   NewCompareCache(),
		limiter: rate.NewLimiter(limit, 1),
		actions: make(map[string]models.Action),
		subs:    make(map[int]chan Update),
	}
	o.visible.Store(true)
	o.debounced, o.cancelDebounce = debounce.New(opts.RefreshDebounce, o.flushPendingUpdates)
	return o
}

// Store returns the task store.
func (o *Orchestrator) Store() *Store { return o.store }

// Cache returns the compare cache.
func (o *Orchestrator) Cache() *CompareCache { return o.cache }

// Snapshot returns the store contents together with the busy flags.
func (o *Orchestrator) Snapshot() Snapshot {
	snap := o.store.Snapshot()
	snap.Loading = o.loading.Load()
	snap.Refreshing = o.refreshing.Load()
	snap.Processing = o.processing.Load()
	snap.UpdatesPending = o.updatesPending.Load()
	snap.BulkBusy = o.bulkBusy.Load()

	o.mu.Lock()
	snap.BulkTaskIDs = slices.Clone(o.bulkIDs)
	for id := range o.actions {
		snap.ActionsInFlight = append(snap.ActionsInFlight, id)
	}
	o.mu.Unlock()
	slices.Sort(snap.ActionsInFlight)
	return snap
}

// SetVisible records whether the view consuming this orchestrator is shown. Hidden views are not polled.
func (o *Orchestrator) SetVisible(visible bool) {
	o.visible.Store(visible)
}

// Subscribe registers a listener. Updates are dropped for a listener whose buffer is full.
//
// The channel is closed by the returned func or by [Orchestrator.Close].
func (o *Orchestrator) Subscribe(buffer int) (<-chan Update, func()) {
	ch := make(chan Update, max(buffer, 0))

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if c, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(c)
			}
		})
	}
}

func (o *Orchestrator) publish(u Update) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed.Load() {
		return
	}
	for _, ch := range o.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Close stops the poller and debounce, closes subscriber channels and discards any result
// that resolves afterwards. In-flight requests are left to finish.
func (o *Orchestrator) Close() {
	if o.closed.Swap(true) {
		return
	}
	o.StopPolling()

	o.debounceMu.Lock()
	o.cancelDebounce()
	o.debounced = nil
	o.debounceMu.Unlock()

	o.mu.Lock()
	for id, ch := range o.subs {
		close(ch)
		delete(o.subs, id)
	}
	o.mu.Unlock()
	o.logger.Debug("orchestrator closed")
}

// Closed reports whether [Orchestrator.Close] was called.
func (o *Orchestrator) Closed() bool { return o.closed.Load() }

func (o *Orchestrator) record(ctx context.Context, summary models.ActivitySummary) {
	if o.opts.Recorder == nil {
		return
	}
	o.opts.Recorder.Record(ctx, summary)
}

// beginAction marks id as having an action in flight. It fails when one already is
// or when id belongs to a running bulk action.
func (o *Orchestrator) beginAction(id string, action models.Action) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.actions[id]; ok {
		return false
	}
	if o.bulkBusy.Load() && slices.Contains(o.bulkIDs, id) {
		return false
	}
	o.actions[id] = action
	return true
}

// claimBulkItem marks id of the running bulk action as in flight. It fails when a
// single-task action already holds id.
func (o *Orchestrator) claimBulkItem(id string, action models.Action) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.actions[id]; ok {
		return false
	}
	o.actions[id] = action
	return true
}

func (o *Orchestrator) endAction(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.actions, id)
}

// foregroundBusy reports whether a refresh, batch, bulk run or single-task action is in flight.
func (o *Orchestrator) foregroundBusy() bool {
	return o.refreshing.Load() || o.processing.Load() || o.bulkBusy.Load() || o.actionsInFlight() > 0
}

func (o *Orchestrator) actionsInFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.actions)
}

func (o *Orchestrator) setBulkIDs(ids []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bulkIDs = ids
}
