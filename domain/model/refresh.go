package model

import (
	"fmt"
	"time"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomePartialSuccess
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomePartialSuccess:
		return "partial_success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Failure reasons reported by adapters.
const (
	ReasonTimeout       = "timeout"
	ReasonQuotaExceeded = "quota_exceeded"
	ReasonRateLimited   = "rate_limited"
	ReasonNetwork       = "network"
	ReasonEmptyPage     = "empty_page"
	ReasonParseFailure  = "parse_failure"
	ReasonNotConfigured = "not_configured"
	ReasonPanic         = "panic"
	ReasonUnderDelivery = "under_delivery"
	ReasonShuttingDown  = "shutting_down"
)

// FetchOutcome is the result classification of one adapter call.
type FetchOutcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

func Success() FetchOutcome { return FetchOutcome{Kind: OutcomeSuccess} }

func PartialSuccess(reason string) FetchOutcome {
	return FetchOutcome{Kind: OutcomePartialSuccess, Reason: reason}
}

func Failure(reason string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeFailure, Reason: reason}
}

// FailureFromError keeps the reason and appends the error detail.
func FailureFromError(reason string, err error) FetchOutcome {
	if err == nil {
		return Failure(reason)
	}
	return Failure(fmt.Sprintf("%s: %v", reason, err))
}

func (o FetchOutcome) Failed() bool { return o.Kind == OutcomeFailure }

// OutcomeForCount classifies a successful call by how much it delivered.
func OutcomeForCount(got, target int) FetchOutcome {
	switch {
	case got == 0:
		return Failure(ReasonEmptyPage)
	case target > 0 && got < target:
		return PartialSuccess(fmt.Sprintf("%s: %d of %d", ReasonUnderDelivery, got, target))
	default:
		return Success()
	}
}

func (o FetchOutcome) String() string {
	if o.Reason == "" {
		return o.Kind.String()
	}
	return o.Kind.String() + "(" + o.Reason + ")"
}

type RefreshState string

const (
	RefreshStateIdle       RefreshState = "idle"
	RefreshStateRefreshing RefreshState = "refreshing"
)

type RefreshTrigger string

const (
	TriggerSchedule RefreshTrigger = "schedule"
	TriggerStale    RefreshTrigger = "stale"
	TriggerForce    RefreshTrigger = "force"
	TriggerStartup  RefreshTrigger = "startup"
	TriggerCLI      RefreshTrigger = "cli"
)

type RefreshResult string

const (
	RefreshCompleted    RefreshResult = "completed"
	RefreshEmpty        RefreshResult = "empty_refresh"
	RefreshFailed       RefreshResult = "failed"
	RefreshNotAttempted RefreshResult = ""
)

// AdapterAttempt records one adapter call inside a refresh run.
type AdapterAttempt struct {
	Adapter  string        `json:"adapter" bson:"adapter"`
	Outcome  FetchOutcome  `json:"outcome" bson:"outcome"`
	Items    int           `json:"items" bson:"items"`
	Duration time.Duration `json:"duration" bson:"duration"`
	Skipped  bool          `json:"skipped,omitempty" bson:"skipped,omitempty"`
}

// RefreshRun is the record of a single refresh cycle.
type RefreshRun struct {
	ID             string           `json:"id" bson:"_id"`
	Trigger        RefreshTrigger   `json:"trigger" bson:"trigger"`
	StartedAt      time.Time        `json:"started_at" bson:"started_at"`
	FinishedAt     time.Time        `json:"finished_at" bson:"finished_at"`
	Result         RefreshResult    `json:"result" bson:"result"`
	Adapters       []AdapterAttempt `json:"adapters" bson:"adapters"`
	RawCount       int              `json:"raw_count" bson:"raw_count"`
	DroppedCount   int              `json:"dropped_count" bson:"dropped_count"`
	DuplicateCount int              `json:"duplicate_count" bson:"duplicate_count"`
	RecordCount    int              `json:"record_count" bson:"record_count"`
	Error          string           `json:"error,omitempty" bson:"error,omitempty"`
}

func (r RefreshRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

type TriggerStatus string

const (
	TriggerStarted        TriggerStatus = "started"
	TriggerAlreadyRunning TriggerStatus = "already_running"
	TriggerAlreadyFresh   TriggerStatus = "already_fresh"
	TriggerFailed         TriggerStatus = "failed"
	TriggerCompleted      TriggerStatus = "completed"
	TriggerEmptyRefresh   TriggerStatus = "empty_refresh"
)

// TriggerResult answers a refresh request.
type TriggerResult struct {
	Status TriggerStatus `json:"status"`
	RunID  string        `json:"run_id,omitempty"`
	Reason string        `json:"reason,omitempty"`
	Run    *RefreshRun   `json:"run,omitempty"`
}

// AdapterHealth is the failover view of one adapter.
type AdapterHealth struct {
	Name                string     `json:"name"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastOutcome         string     `json:"last_outcome,omitempty"`
	SkippedUntil        *time.Time `json:"skipped_until,omitempty"`
}

// RefreshStatus is a point-in-time view of the scheduler.
type RefreshStatus struct {
	State         RefreshState    `json:"state"`
	LastUpdated   time.Time       `json:"last_updated"`
	RecordCount   int             `json:"record_count"`
	Stale         bool            `json:"stale"`
	LastRun       *RefreshRun     `json:"last_run,omitempty"`
	CurrentRunID  string          `json:"current_run_id,omitempty"`
	Adapters      []AdapterHealth `json:"adapters"`
	LastLoadError string          `json:"last_load_error,omitempty"`
}

// RefreshEvent is broadcast after every finished run.
type RefreshEvent struct {
	Type        string        `json:"type"`
	RunID       string        `json:"run_id"`
	Trigger     string        `json:"trigger"`
	Result      RefreshResult `json:"result"`
	RecordCount int           `json:"record_count"`
	LastUpdated time.Time     `json:"last_updated"`
	Source      string        `json:"source,omitempty"`
	Error       string        `json:"error,omitempty"`
}

func NewRefreshEvent(run RefreshRun, snap *CacheSnapshot) RefreshEvent {
	evt := RefreshEvent{
		Type:        "refresh_finished",
		RunID:       run.ID,
		Trigger:     string(run.Trigger),
		Result:      run.Result,
		RecordCount: run.RecordCount,
		Error:       run.Error,
	}
	if snap != nil {
		evt.LastUpdated = snap.LastUpdated
		evt.Source = snap.Source
		if run.Result != RefreshCompleted {
			evt.RecordCount = snap.RecordCount
		}
	}
	return evt
}
