package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/events"
	apperrors "github.com/spec-kit/intranet/pkg/util/errorutil"
)

// Transitioner persists a status change through a named route.
type Transitioner interface {
	Transition(ctx context.Context, id int64, action string, payload domain.Fields) (domain.Resource, error)
}

// HistoryWriter appends audit entries.
type HistoryWriter interface {
	AppendHistory(ctx context.Context, id int64, entry domain.HistoryEntry) (domain.HistoryEntry, error)
}

// Backend is what a Runner needs from the resource client.
type Backend interface {
	Transitioner
	HistoryWriter
}

// Result is the outcome of a transition.
type Result struct {
	Resource domain.Resource
	History  *domain.HistoryEntry
}

// Runner performs status transitions: the status write first, then the history append.
type Runner struct {
	machine    Machine
	backend    Backend
	logger     *zap.Logger
	dispatcher events.Dispatcher
	actor      string
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithDispatcher publishes status and failure events.
func WithDispatcher(d events.Dispatcher) Option {
	return func(r *Runner) { r.dispatcher = d }
}

// WithActor sets the name recorded on history entries.
func WithActor(actor string) Option {
	return func(r *Runner) { r.actor = actor }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner constructs a Runner for one kind.
func NewRunner(machine Machine, backend Backend, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		machine: machine,
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Machine returns the runner's transition table.
func (r *Runner) Machine() Machine {
	return r.machine
}

// Change moves current to the given status through the generic status route.
func (r *Runner) Change(ctx context.Context, current domain.Resource, to domain.Status, note string) (Result, error) {
	payload := domain.Fields{}
	if note != "" {
		payload["note"] = note
	}
	return r.run(ctx, current, Action{
		Name:        statusRoute,
		To:          to,
		Route:       statusRoute,
		HistoryType: domain.HistoryStatusChange,
	}, payload, note)
}

// Apply performs a named action such as "assign" or "approve".
func (r *Runner) Apply(ctx context.Context, current domain.Resource, name string, payload domain.Fields) (Result, error) {
	action, ok := r.machine.Action(name)
	if !ok {
		return Result{}, apperrors.NewValidationError("status", fmt.Sprintf("unknown action %q", name))
	}
	note, _ := payload["description"].(string)
	if n, ok := payload["note"].(string); ok && n != "" {
		note = n
	}
	return r.run(ctx, current, action, payload.Clone(), note)
}

func (r *Runner) run(ctx context.Context, current domain.Resource, action Action, payload domain.Fields, note string) (Result, error) {
	from := current.Status
	if err := r.machine.Check(from, action.To); err != nil {
		return Result{}, apperrors.NewValidationError("status", err.Error())
	}

	// The write is not abandoned once it has been issued.
	ctx = context.WithoutCancel(ctx)

	// The action alone decides the target; caller payload cannot redirect it.
	if action.Route == statusRoute {
		payload["status"] = string(action.To)
	} else {
		payload["type"] = string(action.HistoryType)
	}

	updated, err := r.backend.Transition(ctx, current.ID, action.Route, payload)
	if err != nil {
		r.logger.Warn("status transition failed",
			zap.String("kind", string(r.machine.Kind)),
			zap.Int64("id", current.ID),
			zap.String("from", string(from)),
			zap.String("to", string(action.To)),
			zap.Error(err),
		)
		return Result{}, err
	}
	if updated.ID == 0 {
		updated.ID = current.ID
	}
	if updated.Status == "" {
		updated.Status = action.To
	}
	r.emit(ctx, events.Event{
		Type:       events.EventStatusChanged,
		Kind:       r.machine.Kind,
		ResourceID: current.ID,
		Actor:      r.actor,
		Payload:    events.StatusChangedPayload{From: from, To: action.To, Action: action.Name},
	})

	entry, err := r.backend.AppendHistory(ctx, current.ID, domain.HistoryEntry{
		ResourceID:  current.ID,
		Type:        action.HistoryType,
		Description: Describe(from, action.To, note),
		Actor:       r.actor,
		Timestamp:   r.now().UTC(),
	})
	if err != nil {
		inconsistency := &apperrors.InconsistencyError{
			ResourceID: current.ID,
			From:       string(from),
			To:         string(action.To),
			Err:        err,
		}
		r.logger.Error("history append failed after status change",
			zap.String("kind", string(r.machine.Kind)),
			zap.Int64("id", current.ID),
			zap.Error(inconsistency),
		)
		r.emitFailure(ctx, current.ID, "history", inconsistency)
		return Result{Resource: updated}, inconsistency
	}

	r.emit(ctx, events.Event{
		Type:       events.EventHistoryAppended,
		Kind:       r.machine.Kind,
		ResourceID: current.ID,
		Actor:      r.actor,
		Payload:    events.HistoryAppendedPayload{Type: entry.Type, Description: entry.Description},
	})
	return Result{Resource: updated, History: &entry}, nil
}

// emitFailure publishes a status change that was not recorded in history.
func (r *Runner) emitFailure(ctx context.Context, id int64, op string, err error) {
	r.emit(ctx, events.Event{
		Type:       events.EventOperationFailed,
		Kind:       r.machine.Kind,
		ResourceID: id,
		Actor:      r.actor,
		Payload: events.OperationFailedPayload{
			Operation:    op,
			Message:      apperrors.UserMessage(err),
			Inconsistent: true,
		},
	})
}

func (r *Runner) emit(ctx context.Context, event events.Event) {
	if err := events.Emit(ctx, r.dispatcher, event); err != nil {
		r.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

// Describe renders the history description of a transition.
func Describe(from, to domain.Status, note string) string {
	desc := fmt.Sprintf("%s → %s", from, to)
	if note != "" {
		desc += ": " + note
	}
	return desc
}

// IsInconsistent reports whether err signals a status change without history.
func IsInconsistent(err error) bool {
	var target *apperrors.InconsistencyError
	return errors.As(err, &target)
}
