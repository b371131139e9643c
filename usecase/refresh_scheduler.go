package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

// Clock is the scheduler's source of "now".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type RefreshMode string

const (
	// RefreshModeFailover uses the first healthy adapter that delivers records.
	RefreshModeFailover RefreshMode = "failover"
	// RefreshModeMerge calls every healthy adapter and merges the results.
	RefreshModeMerge RefreshMode = "merge"
)

// SchedulerConfig tunes when and how refreshes run.
type SchedulerConfig struct {
	CheckInterval      time.Duration
	StalenessThreshold time.Duration
	AdapterTimeout     time.Duration
	TargetCount        int
	Mode               RefreshMode
	FailoverThreshold  int
	FailoverCooldown   time.Duration
	Params             model.FetchParams
	// SkipStartupCheck leaves the first staleness check to the first tick.
	SkipStartupCheck bool
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 10 * time.Minute
	}
	if c.StalenessThreshold <= 0 {
		c.StalenessThreshold = 2 * time.Hour
	}
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = 2 * time.Minute
	}
	if c.TargetCount <= 0 {
		c.TargetCount = 200
	}
	if c.Mode == "" {
		c.Mode = RefreshModeFailover
	}
	if c.FailoverThreshold <= 0 {
		c.FailoverThreshold = 3
	}
	if c.FailoverCooldown <= 0 {
		c.FailoverCooldown = 6 * time.Hour
	}
	return c
}

// RefreshObserver receives refresh telemetry.
type RefreshObserver interface {
	ObserveRun(run model.RefreshRun)
	ObserveAdapter(adapter string, outcome model.FetchOutcome, elapsed time.Duration)
	ObserveSnapshot(snapshot *model.CacheSnapshot)
}

type adapterState struct {
	failures    int
	lastOutcome string
	skipUntil   time.Time
}

// RefreshScheduler is the only writer of the cache snapshot. At most one refresh runs at a time;
// readers get the last committed snapshot and never wait on a refresh.
type RefreshScheduler struct {
	store     repository.ISnapshotStore
	adapters  []repository.ISourceAdapter
	cfg       SchedulerConfig
	clock     Clock
	history   repository.IRefreshHistory
	notifiers []repository.IRefreshNotifier
	observer  RefreshObserver

	snapshot atomic.Pointer[model.CacheSnapshot]

	mu           sync.Mutex
	state        model.RefreshState
	currentRunID string
	lastRun      *model.RefreshRun
	health       map[string]*adapterState
	lastLoadErr  error
	baseCtx      context.Context
	stopping     bool

	wg sync.WaitGroup
}

// NewRefreshScheduler builds a scheduler over adapters in priority order.
func NewRefreshScheduler(store repository.ISnapshotStore, adapters []repository.ISourceAdapter, cfg SchedulerConfig) *RefreshScheduler {
	s := &RefreshScheduler{
		store:    store,
		adapters: adapters,
		cfg:      cfg.withDefaults(),
		clock:    systemClock{},
		state:    model.RefreshStateIdle,
		health:   make(map[string]*adapterState, len(adapters)),
		baseCtx:  context.Background(),
	}
	for _, a := range adapters {
		s.health[a.Name()] = &adapterState{}
	}
	s.snapshot.Store(model.EmptySnapshot())
	return s
}

func (s *RefreshScheduler) WithClock(clock Clock) *RefreshScheduler {
	s.clock = clock
	return s
}

func (s *RefreshScheduler) WithHistory(history repository.IRefreshHistory) *RefreshScheduler {
	s.history = history
	return s
}

func (s *RefreshScheduler) WithNotifier(n repository.IRefreshNotifier) *RefreshScheduler {
	if n != nil {
		s.notifiers = append(s.notifiers, n)
	}
	return s
}

func (s *RefreshScheduler) WithObserver(o RefreshObserver) *RefreshScheduler {
	s.observer = o
	return s
}

func (s *RefreshScheduler) Config() SchedulerConfig { return s.cfg }

func (s *RefreshScheduler) Now() time.Time { return s.clock.Now() }

// Load reads the persisted snapshot. Missing or corrupt data leaves the empty snapshot in place,
// which makes the next staleness check refresh immediately.
func (s *RefreshScheduler) Load(ctx context.Context) error {
	snap, err := s.store.Read(ctx)
	if snap == nil {
		snap = model.EmptySnapshot()
	}
	s.snapshot.Store(snap)
	if s.observer != nil {
		s.observer.ObserveSnapshot(snap)
	}

	s.mu.Lock()
	s.lastLoadErr = err
	s.mu.Unlock()

	if err != nil {
		lg := logger.GetLogger().WithField("store", s.store.Name()).WithField("error", err)
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			lg.Info("No cached snapshot yet")
		} else {
			lg.Warn("Cached snapshot unreadable, treating as empty")
		}
		return err
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"store":       s.store.Name(),
		"records":     snap.RecordCount,
		"lastUpdated": snap.LastUpdated,
	}).Info("Cached snapshot loaded")
	return nil
}

// Snapshot returns the last committed snapshot. Callers must not modify it.
func (s *RefreshScheduler) Snapshot() *model.CacheSnapshot {
	return s.snapshot.Load()
}

// IsStale reports whether the current snapshot needs a refresh at now.
func (s *RefreshScheduler) IsStale(now time.Time) bool {
	snap := s.Snapshot()
	if snap.IsEmpty() {
		return true
	}
	return now.Sub(snap.LastUpdated) > s.cfg.StalenessThreshold
}

// Run checks staleness at start and then on every tick until ctx is done.
func (s *RefreshScheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	if !s.cfg.SkipStartupCheck {
		s.Trigger(ctx, model.TriggerStartup, false)
	}

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return nil
		case <-ticker.C:
			res := s.Trigger(ctx, model.TriggerSchedule, false)
			if res.Status == model.TriggerStarted {
				logger.GetLogger().WithField("runId", res.RunID).Info("Scheduled refresh started")
			}
		}
	}
}

// Trigger starts a background refresh when one is due. With force, staleness is not checked.
// It never waits for the refresh to finish.
func (s *RefreshScheduler) Trigger(_ context.Context, trigger model.RefreshTrigger, force bool) model.TriggerResult {
	run, res, ok := s.begin(trigger, force)
	if !ok {
		return res
	}
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.execute(ctx, run)
	}()
	return res
}

// RefreshNow runs a refresh in the caller's goroutine and reports how it ended.
func (s *RefreshScheduler) RefreshNow(ctx context.Context, trigger model.RefreshTrigger, force bool) model.TriggerResult {
	run, res, ok := s.begin(trigger, force)
	if !ok {
		return res
	}
	done := s.execute(ctx, run)
	s.wg.Done()

	out := model.TriggerResult{RunID: done.ID, Run: &done, Reason: done.Error}
	switch done.Result {
	case model.RefreshCompleted:
		out.Status = model.TriggerCompleted
	case model.RefreshEmpty:
		out.Status = model.TriggerEmptyRefresh
	default:
		out.Status = model.TriggerFailed
	}
	return out
}

// Wait blocks until the in-flight refresh, if any, has finished.
func (s *RefreshScheduler) Wait() {
	s.wg.Wait()
}

// Stop refuses new refreshes and waits for the in-flight one.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	s.wg.Wait()
}

// begin moves Idle to Refreshing. Concurrent callers coalesce into already_running.
func (s *RefreshScheduler) begin(trigger model.RefreshTrigger, force bool) (*model.RefreshRun, model.TriggerResult, bool) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return nil, model.TriggerResult{Status: model.TriggerFailed, Reason: model.ReasonShuttingDown}, false
	}
	if s.state == model.RefreshStateRefreshing {
		return nil, model.TriggerResult{Status: model.TriggerAlreadyRunning, RunID: s.currentRunID}, false
	}
	if !force && !s.IsStale(now) {
		return nil, model.TriggerResult{Status: model.TriggerAlreadyFresh}, false
	}
	if len(s.adapters) == 0 {
		return nil, model.TriggerResult{Status: model.TriggerFailed, Reason: model.ReasonNotConfigured}, false
	}

	run := &model.RefreshRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: now,
	}
	s.state = model.RefreshStateRefreshing
	s.currentRunID = run.ID
	s.wg.Add(1)
	return run, model.TriggerResult{Status: model.TriggerStarted, RunID: run.ID}, true
}

type adapterResult struct {
	adapter string
	raw     int
	dropped int
	records []model.VideoRecord
	attempt model.AdapterAttempt
}

func (s *RefreshScheduler) execute(ctx context.Context, run *model.RefreshRun) (finished model.RefreshRun) {
	lg := logger.GetLogger().WithField("runId", run.ID).WithField("trigger", run.Trigger)
	lg.Info("Refresh started")

	defer func() {
		if r := recover(); r != nil {
			run.Result = model.RefreshFailed
			run.Error = fmt.Sprintf("%s: %v", model.ReasonPanic, r)
			lg.WithField("panic", r).Error("Refresh panicked")
		}
		run.FinishedAt = s.clock.Now()
		s.finish(run)
		finished = *run
		s.publish(ctx, *run)
	}()

	results := s.collect(ctx)

	var records []model.VideoRecord
	var sources []string
	for _, r := range results {
		run.Adapters = append(run.Adapters, r.attempt)
		run.RawCount += r.raw
		run.DroppedCount += r.dropped
		if len(r.records) == 0 {
			continue
		}
		sources = append(sources, r.adapter)
		records = append(records, r.records...)
	}

	deduped, dups := Dedupe(records)
	run.DuplicateCount = dups
	run.RecordCount = len(deduped)

	if len(deduped) == 0 {
		run.Result = model.RefreshEmpty
		run.Error = failureSummary(run.Adapters)
		lg.WithField("adapters", run.Error).Warn("Refresh yielded no records, keeping previous snapshot")
		return
	}

	prev := s.Snapshot()
	lastUpdated := s.clock.Now().UTC()
	if prev != nil && prev.LastUpdated.After(lastUpdated) {
		lastUpdated = prev.LastUpdated
	}
	snap := model.NewCacheSnapshot(deduped, lastUpdated, strings.Join(sources, "+"))

	if err := s.store.Write(ctx, snap); err != nil {
		run.Result = model.RefreshFailed
		run.Error = fmt.Sprintf("write snapshot: %v", err)
		lg.WithField("error", err).Error("Failed writing snapshot, keeping previous snapshot")
		return
	}
	s.snapshot.Store(snap)
	if s.observer != nil {
		s.observer.ObserveSnapshot(snap)
	}

	run.Result = model.RefreshCompleted
	lg.WithFields(map[string]interface{}{
		"records":    run.RecordCount,
		"raw":        run.RawCount,
		"dropped":    run.DroppedCount,
		"duplicates": run.DuplicateCount,
		"source":     snap.Source,
	}).Info("Refresh completed")
	return
}

func (s *RefreshScheduler) finish(run *model.RefreshRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = model.RefreshStateIdle
	s.currentRunID = ""
	done := *run
	s.lastRun = &done
}

// publish hands the finished run to history, metrics and notifiers. Failures are logged only.
func (s *RefreshScheduler) publish(ctx context.Context, run model.RefreshRun) {
	if s.observer != nil {
		s.observer.ObserveRun(run)
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if s.history != nil {
		if err := s.history.Record(pctx, run); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Failed recording refresh run")
		}
	}
	evt := model.NewRefreshEvent(run, s.Snapshot())
	for _, n := range s.notifiers {
		if err := n.NotifyRefresh(pctx, evt); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Failed notifying refresh")
		}
	}
}

// collect calls adapters according to the configured mode.
func (s *RefreshScheduler) collect(ctx context.Context) []adapterResult {
	now := s.clock.Now()
	candidates, skipped := s.partition(now)

	results := make([]adapterResult, 0, len(s.adapters))
	for _, name := range skipped {
		results = append(results, adapterResult{
			adapter: name,
			attempt: model.AdapterAttempt{Adapter: name, Skipped: true, Outcome: model.Failure("cooling_down")},
		})
	}

	if s.cfg.Mode == RefreshModeMerge {
		merged := make([]adapterResult, len(candidates))
		var g errgroup.Group
		for i, a := range candidates {
			g.Go(func() error {
				merged[i] = s.call(ctx, a)
				return nil
			})
		}
		_ = g.Wait()
		return append(results, merged...)
	}

	for _, a := range candidates {
		r := s.call(ctx, a)
		results = append(results, r)
		if !r.attempt.Outcome.Failed() && len(r.records) > 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return results
}

// partition splits adapters into those to call now and those cooling down after repeated failures.
// When every adapter is cooling down all of them are tried again.
func (s *RefreshScheduler) partition(now time.Time) ([]repository.ISourceAdapter, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []repository.ISourceAdapter
	var skipped []string
	for _, a := range s.adapters {
		st := s.health[a.Name()]
		if st != nil && now.Before(st.skipUntil) {
			skipped = append(skipped, a.Name())
			continue
		}
		ready = append(ready, a)
	}
	if len(ready) == 0 {
		return s.adapters, nil
	}
	return ready, skipped
}

// call runs one adapter under the per-call timeout. Panics and overruns become failures.
func (s *RefreshScheduler) call(ctx context.Context, a repository.ISourceAdapter) adapterResult {
	name := a.Name()
	cctx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
	defer cancel()

	type fetched struct {
		items   []model.RawItem
		outcome model.FetchOutcome
	}
	ch := make(chan fetched, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- fetched{outcome: model.Failure(fmt.Sprintf("%s: %v", model.ReasonPanic, r))}
			}
		}()
		items, outcome := a.Fetch(cctx, s.cfg.TargetCount, s.cfg.Params)
		ch <- fetched{items: items, outcome: outcome}
	}()

	var f fetched
	select {
	case f = <-ch:
	case <-cctx.Done():
		reason := model.ReasonTimeout
		if errors.Is(cctx.Err(), context.Canceled) {
			reason = "canceled"
		}
		f = fetched{outcome: model.Failure(reason)}
	}
	if f.outcome.Failed() {
		f.items = nil
	}
	elapsed := time.Since(start)

	// items that all fail normalization count against the adapter like any other bad fetch
	var records []model.VideoRecord
	dropped := 0
	if len(f.items) > 0 {
		normalized, d := NormalizeBatch(f.items, name, s.clock.Now())
		dropped = d
		records = ClassifyBatch(normalized)
		if len(records) == 0 {
			f.outcome = model.Failure(fmt.Sprintf("%s: %d items unusable", model.ReasonParseFailure, len(f.items)))
		}
	}

	s.recordHealth(name, f.outcome)
	if s.observer != nil {
		s.observer.ObserveAdapter(name, f.outcome, elapsed)
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"adapter": name,
		"outcome": f.outcome.String(),
		"items":   len(f.items),
		"records": len(records),
		"elapsed": elapsed.String(),
	}).Info("Source adapter finished")

	return adapterResult{
		adapter: name,
		raw:     len(f.items),
		dropped: dropped,
		records: records,
		attempt: model.AdapterAttempt{Adapter: name, Outcome: f.outcome, Items: len(records), Duration: elapsed},
	}
}

func (s *RefreshScheduler) recordHealth(name string, outcome model.FetchOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.health[name]
	if st == nil {
		st = &adapterState{}
		s.health[name] = st
	}
	st.lastOutcome = outcome.String()
	if !outcome.Failed() {
		st.failures = 0
		st.skipUntil = time.Time{}
		return
	}
	st.failures++
	if st.failures >= s.cfg.FailoverThreshold {
		st.skipUntil = s.clock.Now().Add(s.cfg.FailoverCooldown)
		logger.GetLogger().WithFields(map[string]interface{}{
			"adapter":      name,
			"failures":     st.failures,
			"skippedUntil": st.skipUntil,
		}).Warn("Source adapter failing repeatedly, falling back")
	}
}

// Status is a consistent view of scheduler state for operators.
func (s *RefreshScheduler) Status() model.RefreshStatus {
	snap := s.Snapshot()
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := model.RefreshStatus{
		State:        s.state,
		LastUpdated:  snap.LastUpdated,
		RecordCount:  snap.RecordCount,
		Stale:        s.IsStale(now),
		CurrentRunID: s.currentRunID,
		Adapters:     make([]model.AdapterHealth, 0, len(s.adapters)),
	}
	if s.lastRun != nil {
		run := *s.lastRun
		st.LastRun = &run
	}
	if s.lastLoadErr != nil {
		st.LastLoadError = s.lastLoadErr.Error()
	}
	for _, a := range s.adapters {
		h := model.AdapterHealth{Name: a.Name()}
		if as := s.health[a.Name()]; as != nil {
			h.ConsecutiveFailures = as.failures
			h.LastOutcome = as.lastOutcome
			if now.Before(as.skipUntil) {
				until := as.skipUntil
				h.SkippedUntil = &until
			}
		}
		st.Adapters = append(st.Adapters, h)
	}
	return st
}

// Dedupe keeps one record per ID, preferring the higher trend score, and orders by score.
func Dedupe(records []model.VideoRecord) ([]model.VideoRecord, int) {
	index := make(map[string]int, len(records))
	out := make([]model.VideoRecord, 0, len(records))
	dups := 0
	for _, r := range records {
		if i, ok := index[r.ID]; ok {
			dups++
			if r.TrendScore > out[i].TrendScore {
				out[i] = r
			}
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TrendScore != out[j].TrendScore {
			return out[i].TrendScore > out[j].TrendScore
		}
		return out[i].ID < out[j].ID
	})
	return out, dups
}

func failureSummary(attempts []model.AdapterAttempt) string {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, a.Adapter+"="+a.Outcome.String())
	}
	return strings.Join(parts, ", ")
}
