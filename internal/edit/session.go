// Package edit holds the transient create/edit draft of one resource.
package edit

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/events"
	"github.com/spec-kit/intranet/internal/store"
	"github.com/spec-kit/intranet/internal/workflow"
	apperrors "github.com/spec-kit/intranet/pkg/util/errorutil"
)

// State of an edit session.
type State string

const (
	StateClosed     State = "closed"
	StateCreating   State = "creating"
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateFailed     State = "failed"
)

var (
	ErrAlreadyOpen = errors.New("edit session already open")
	ErrNotOpen     = errors.New("edit session is not open")
	ErrSubmitting  = errors.New("submit already in progress")
)

// Writer persists drafts.
type Writer interface {
	Create(ctx context.Context, draft domain.Resource) (domain.Resource, error)
	Update(ctx context.Context, id int64, partial domain.Fields) (domain.Resource, error)
}

// Refresher is the store a successful submit invalidates and reloads.
type Refresher interface {
	Invalidate()
	Refresh(ctx context.Context) (store.Snapshot, error)
}

// Session is a draft plus its validation errors. It is safe for concurrent use.
type Session struct {
	schema     domain.Schema
	writer     Writer
	runner     *workflow.Runner
	store      Refresher
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu       sync.Mutex
	state    State
	epoch    uint64
	targetID int64
	original domain.Resource
	draft    domain.Resource
	errs     map[string]string
	lastErr  error
}

// Option configures a Session.
type Option func(*Session)

// WithRunner routes status changes made while editing through the workflow.
func WithRunner(r *workflow.Runner) Option {
	return func(s *Session) { s.runner = r }
}

// WithStore sets the store refreshed after a successful submit.
func WithStore(r Refresher) Option {
	return func(s *Session) { s.store = r }
}

// WithDispatcher publishes created, updated and failure events.
func WithDispatcher(d events.Dispatcher) Option {
	return func(s *Session) { s.dispatcher = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// NewSession constructs a closed session for one kind.
func NewSession(schema domain.Schema, writer Writer, opts ...Option) *Session {
	s := &Session{
		schema: schema,
		writer: writer,
		logger: zap.NewNop(),
		state:  StateClosed,
		errs:   map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts a session. With a nil resource the session creates a new one
// from the kind's defaults; otherwise it edits a copy of existing.
func (s *Session) Open(existing *domain.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		return ErrAlreadyOpen
	}

	s.epoch++
	s.errs = map[string]string{}
	s.lastErr = nil
	if existing == nil {
		s.state = StateCreating
		s.targetID = 0
		s.original = domain.Resource{}
		s.draft = domain.Resource{Status: s.schema.InitialStatus, Fields: s.schema.Defaults.Clone()}
		return nil
	}
	s.state = StateEditing
	s.targetID = existing.ID
	s.original = existing.Clone()
	s.draft = existing.Clone()
	return nil
}

// SetField updates the draft. The pseudo-field "status" sets the draft status.
func (s *Session) SetField(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}

	if name == "status" {
		str, ok := value.(string)
		if !ok {
			if st, isStatus := value.(domain.Status); isStatus {
				str, ok = string(st), true
			}
		}
		if !ok {
			return apperrors.NewValidationError("status", "must be text")
		}
		s.draft.Status = domain.Status(str)
	} else {
		if _, ok := s.schema.Field(name); !ok {
			return apperrors.NewValidationError(name, fmt.Sprintf("%s has no field %q", s.schema.Label, name))
		}
		s.draft.Fields[name] = value
	}

	delete(s.errs, name)
	if s.state == StateFailed {
		s.state = s.openStateLocked()
	}
	return nil
}

// Validate checks the draft and records the errors. The result is empty when valid.
func (s *Session) Validate() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = s.validateLocked()
	return maps.Clone(s.errs)
}

func (s *Session) validateLocked() map[string]string {
	errs := s.schema.Validate(s.draft.Fields, s.draft.Status)
	if s.targetID != 0 && s.draft.Status != s.original.Status {
		if _, bad := errs["status"]; !bad {
			if s.runner == nil {
				errs["status"] = "cannot be changed here"
			} else if err := s.runner.Machine().Check(s.original.Status, s.draft.Status); err != nil {
				errs["status"] = err.Error()
			}
		}
	}
	return errs
}

// Submit validates and persists the draft. Invalid drafts are rejected
// locally with a *errorutil.ValidationError and the session stays open. Once
// the write is issued it runs to completion regardless of ctx. On success the
// session closes and the store is refreshed; on failure the session keeps the
// draft and records the error.
func (s *Session) Submit(ctx context.Context) (domain.Resource, error) {
	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		s.mu.Unlock()
		return domain.Resource{}, err
	}
	if errs := s.validateLocked(); len(errs) > 0 {
		s.errs = errs
		s.state = s.openStateLocked()
		s.mu.Unlock()
		return domain.Resource{}, &apperrors.ValidationError{Fields: maps.Clone(errs)}
	}

	s.errs = map[string]string{}
	s.lastErr = nil
	s.state = StateSubmitting
	epoch := s.epoch
	targetID := s.targetID
	original := s.original.Clone()
	draft := s.draft.Clone()
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	var (
		res   domain.Resource
		wrote bool
		err   error
	)
	if targetID == 0 {
		res, err = s.writer.Create(ctx, domain.Resource{Status: draft.Status, Fields: s.schema.Declared(draft.Fields)})
		wrote = err == nil
	} else {
		res, wrote, err = s.update(ctx, original, draft)
	}

	if wrote && s.store != nil {
		s.store.Invalidate()
		if _, refreshErr := s.store.Refresh(ctx); refreshErr != nil && !errors.Is(refreshErr, store.ErrClosed) {
			s.logger.Warn("refresh after submit failed", zap.String("kind", string(s.schema.Kind)), zap.Error(refreshErr))
		}
	}

	s.finish(epoch, targetID, res, err)
	return res, err
}

// update writes changed fields, then the status change through the workflow.
func (s *Session) update(ctx context.Context, original, draft domain.Resource) (domain.Resource, bool, error) {
	res := original
	wrote := false

	if partial := changedFields(s.schema, original.Fields, draft.Fields); len(partial) > 0 {
		updated, err := s.writer.Update(ctx, original.ID, partial)
		if err != nil {
			return domain.Resource{}, false, err
		}
		res, wrote = updated, true
		if res.ID == 0 {
			res.ID = original.ID
		}
		if res.Status == "" {
			res.Status = original.Status
		}
	}

	if draft.Status != original.Status {
		// the workflow checks legality against the status it was opened with
		current := res
		current.Status = original.Status
		result, err := s.runner.Change(ctx, current, draft.Status, "")
		if err != nil && !workflow.IsInconsistent(err) {
			return res, wrote, err
		}
		return result.Resource, true, err
	}
	return res, wrote, nil
}

func (s *Session) finish(epoch uint64, targetID int64, res domain.Resource, err error) {
	kind := s.schema.Kind
	if err == nil || workflow.IsInconsistent(err) {
		typ := events.EventResourceCreated
		if targetID != 0 {
			typ = events.EventResourceUpdated
		}
		s.emit(events.Event{Type: typ, Kind: kind, ResourceID: res.ID})
	} else {
		s.emit(events.Event{
			Type:       events.EventOperationFailed,
			Kind:       kind,
			ResourceID: targetID,
			Payload:    events.OperationFailedPayload{Operation: "submit", Message: apperrors.UserMessage(err)},
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// cancelled while the write was in flight
		return
	}
	if err == nil || workflow.IsInconsistent(err) {
		s.state = StateClosed
		s.epoch++
		s.targetID = 0
		s.original = domain.Resource{}
		s.draft = domain.Resource{}
		s.errs = map[string]string{}
		s.lastErr = err
		return
	}
	s.state = StateFailed
	s.lastErr = err
	s.errs = map[string]string{apperrors.FormField: apperrors.UserMessage(err)}
	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		maps.Copy(s.errs, validationErr.Fields)
	}
}

func (s *Session) emit(event events.Event) {
	if err := events.Emit(context.Background(), s.dispatcher, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

// Cancel closes the session. A submit still in flight completes but no
// longer touches the session.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.state = StateClosed
	s.targetID = 0
	s.original = domain.Resource{}
	s.draft = domain.Resource{}
	s.errs = map[string]string{}
	s.lastErr = nil
}

func (s *Session) editableLocked() error {
	switch s.state {
	case StateCreating, StateEditing, StateFailed:
		return nil
	case StateSubmitting:
		return ErrSubmitting
	default:
		return ErrNotOpen
	}
}

func (s *Session) openStateLocked() State {
	if s.targetID != 0 {
		return StateEditing
	}
	return StateCreating
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Draft returns a copy of the draft.
func (s *Session) Draft() domain.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Errors returns the field errors of the last validation or submit.
func (s *Session) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.errs)
}

// TargetID is the id being edited, zero in create mode.
func (s *Session) TargetID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetID
}

// Err is the error of the last submit. After a submit whose history append
// failed it holds the inconsistency while the session is already closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func changedFields(schema domain.Schema, before, after domain.Fields) domain.Fields {
	partial := domain.Fields{}
	for _, name := range schema.FieldNames() {
		next, inAfter := after[name]
		prev, inBefore := before[name]
		if !inAfter && !inBefore {
			continue
		}
		if !reflect.DeepEqual(prev, next) {
			partial[name] = next
		}
	}
	return partial
}
