package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/events"
	"github.com/spec-kit/intranet/internal/repository"
	"github.com/spec-kit/intranet/internal/workflow"
	apperrors "github.com/spec-kit/intranet/pkg/util/errorutil"
)

// Routes accepted by Transition besides the named workflow actions.
const (
	RouteStatus     = "status"
	RouteAssignment = "assignment"
)

// ReservationConflictDetail is returned when a reservation overlaps an approved one.
const ReservationConflictDetail = "해당 시간에 이미 승인된 예약이 있습니다."

var notFoundDetails = map[domain.Kind]string{
	domain.KindAsset:        "자산을 찾을 수 없습니다.",
	domain.KindReservation:  "예약을 찾을 수 없습니다.",
	domain.KindMaintenance:  "유지보수 기록을 찾을 수 없습니다.",
	domain.KindInspection:   "점검 기록을 찾을 수 없습니다.",
	domain.KindAttendance:   "근태 기록을 찾을 수 없습니다.",
	domain.KindApprovalLine: "결재선을 찾을 수 없습니다.",
	domain.KindSchedule:     "일정을 찾을 수 없습니다.",
	domain.KindPost:         "게시글을 찾을 수 없습니다.",
}

// ResourceService coordinates resource workflows for the development server.
type ResourceService struct {
	resources  repository.ResourceRepository
	history    repository.HistoryRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ResourceDependencies bundles repositories for the resource service.
type ResourceDependencies struct {
	ResourceRepo repository.ResourceRepository
	HistoryRepo  repository.HistoryRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewResourceService constructs the service.
func NewResourceService(deps ResourceDependencies) *ResourceService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{
		resources:  deps.ResourceRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// List returns every resource of a kind.
func (s *ResourceService) List(ctx context.Context, kind domain.Kind) ([]domain.Resource, error) {
	if _, err := schemaFor(kind); err != nil {
		return nil, err
	}
	return s.resources.List(ctx, kind)
}

// Get fetches one resource.
func (s *ResourceService) Get(ctx context.Context, kind domain.Kind, id int64) (*domain.Resource, error) {
	if _, err := schemaFor(kind); err != nil {
		return nil, err
	}
	return s.load(ctx, kind, id)
}

// Create validates and stores a new resource in its kind's initial status.
func (s *ResourceService) Create(ctx context.Context, kind domain.Kind, actor string, input domain.Resource) (*domain.Resource, error) {
	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}
	if err := rejectUndeclared(schema, input.Fields); err != nil {
		return nil, err
	}

	fields := schema.Defaults.Clone()
	for k, v := range input.Fields {
		fields[k] = v
	}
	status := input.Status
	if status == "" {
		status = schema.InitialStatus
	}
	if status != schema.InitialStatus {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("a new %s starts as %s", schema.Label, schema.InitialStatus))
	}
	if errs := schema.Validate(fields, status); len(errs) > 0 {
		return nil, &apperrors.ValidationError{Fields: errs}
	}
	if kind == domain.KindReservation {
		if err := s.checkReservationConflict(ctx, 0, fields); err != nil {
			return nil, err
		}
	}

	res := &domain.Resource{Status: status, Fields: fields}
	if err := s.resources.Create(ctx, kind, res); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{Type: events.EventResourceCreated, Kind: kind, ResourceID: res.ID, Actor: actor})
	return res, nil
}

// Update merges a partial set of declared fields. Status changes go through Transition.
func (s *ResourceService) Update(ctx context.Context, kind domain.Kind, id int64, actor string, partial domain.Fields) (*domain.Resource, error) {
	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}
	if _, ok := partial["status"]; ok {
		return nil, apperrors.NewValidationError("status", "is changed through the status route")
	}
	if err := rejectUndeclared(schema, partial); err != nil {
		return nil, err
	}

	res, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	for k, v := range partial {
		if v == nil {
			delete(res.Fields, k)
			continue
		}
		res.Fields[k] = v
	}
	if errs := schema.Validate(res.Fields, res.Status); len(errs) > 0 {
		return nil, &apperrors.ValidationError{Fields: errs}
	}
	if kind == domain.KindReservation {
		if err := s.checkReservationConflict(ctx, id, res.Fields); err != nil {
			return nil, err
		}
	}

	if err := s.resources.Update(ctx, kind, res); err != nil {
		return nil, s.mapNotFound(kind, err)
	}
	s.publishEvent(ctx, events.Event{Type: events.EventResourceUpdated, Kind: kind, ResourceID: id, Actor: actor})
	return res, nil
}

// Delete removes a resource. Its history entries are kept.
func (s *ResourceService) Delete(ctx context.Context, kind domain.Kind, id int64, actor string) error {
	if _, err := schemaFor(kind); err != nil {
		return err
	}
	if err := s.resources.Delete(ctx, kind, id); err != nil {
		return s.mapNotFound(kind, err)
	}
	s.publishEvent(ctx, events.Event{Type: events.EventResourceDeleted, Kind: kind, ResourceID: id, Actor: actor})
	return nil
}

// Transition changes a resource's status through a route. The "status" route
// takes {"status": ...}; the asset "assignment" route takes {"type": "할당"|"반납",
// "user", "department"}. History is appended separately by the caller.
func (s *ResourceService) Transition(ctx context.Context, kind domain.Kind, id int64, route, actor string, payload domain.Fields) (*domain.Resource, error) {
	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}
	machine, err := workflow.For(kind)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	res, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	from := res.Status

	var to domain.Status
	switch {
	case route == RouteStatus:
		raw, _ := payload["status"].(string)
		to = domain.Status(strings.TrimSpace(raw))
		if !schema.HasStatus(to) {
			return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown %s status %q", schema.Label, raw))
		}
	case route == RouteAssignment && kind == domain.KindAsset:
		to, err = applyAssignment(res, payload)
		if err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.NewDomainError("NOT_FOUND", fmt.Sprintf("unknown action %q", route), http.StatusNotFound)
	}

	if err := machine.Check(from, to); err != nil {
		return nil, apperrors.NewDomainError("INVALID_TRANSITION", err.Error(), http.StatusConflict)
	}
	if kind == domain.KindReservation && to == domain.StatusApproved {
		if err := s.checkReservationConflict(ctx, id, res.Fields); err != nil {
			return nil, err
		}
	}

	res.Status = to
	if err := s.resources.Update(ctx, kind, res); err != nil {
		return nil, s.mapNotFound(kind, err)
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventStatusChanged,
		Kind:       kind,
		ResourceID: id,
		Actor:      actor,
		Payload:    events.StatusChangedPayload{From: from, To: to, Action: route},
	})
	return res, nil
}

func applyAssignment(res *domain.Resource, payload domain.Fields) (domain.Status, error) {
	typ, _ := payload["type"].(string)
	switch domain.HistoryType(typ) {
	case domain.HistoryAssign:
		user, _ := payload["user"].(string)
		if strings.TrimSpace(user) == "" {
			return "", apperrors.NewValidationError("user", "is required")
		}
		res.Fields["assigned_to"] = user
		if dept, ok := payload["department"].(string); ok && dept != "" {
			res.Fields["department"] = dept
		}
		return domain.StatusAssetInUse, nil
	case domain.HistoryReturn:
		delete(res.Fields, "assigned_to")
		return domain.StatusAssetIdle, nil
	default:
		return "", apperrors.NewValidationError("type", "must be one of 할당, 반납")
	}
}

// History lists a resource's audit entries, oldest first. Entries of a
// deleted resource stay readable.
func (s *ResourceService) History(ctx context.Context, kind domain.Kind, id int64) ([]domain.HistoryEntry, error) {
	if _, err := schemaFor(kind); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByResource(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}
	if _, err := s.load(ctx, kind, id); err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendHistory records an audit entry against an existing resource.
func (s *ResourceService) AppendHistory(ctx context.Context, kind domain.Kind, id int64, actor string, entry domain.HistoryEntry) (*domain.HistoryEntry, error) {
	if _, err := schemaFor(kind); err != nil {
		return nil, err
	}
	if strings.TrimSpace(entry.Description) == "" {
		return nil, apperrors.NewValidationError("description", "is required")
	}
	switch entry.Type {
	case "":
		entry.Type = domain.HistoryStatusChange
	case domain.HistoryStatusChange, domain.HistoryAssign, domain.HistoryReturn, domain.HistoryRepair, domain.HistoryDispose:
	default:
		return nil, apperrors.NewValidationError("type", fmt.Sprintf("unknown history type %q", entry.Type))
	}
	if entry.Actor == "" {
		entry.Actor = actor
	}
	entry.ID = 0
	entry.ResourceID = id

	if err := s.history.Create(ctx, kind, &entry); err != nil {
		return nil, s.mapNotFound(kind, err)
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventHistoryAppended,
		Kind:       kind,
		ResourceID: id,
		Actor:      entry.Actor,
		Payload:    events.HistoryAppendedPayload{Type: entry.Type, Description: entry.Description},
	})
	return &entry, nil
}

// checkReservationConflict rejects a time range that overlaps an approved
// reservation of the same facility. Ranges are half-open.
func (s *ResourceService) checkReservationConflict(ctx context.Context, selfID int64, fields domain.Fields) error {
	facility, ok := domain.AsNumber(fields["facility_id"])
	if !ok {
		return nil
	}
	start, ok1 := domain.ParseTime(fields["start_time"])
	end, ok2 := domain.ParseTime(fields["end_time"])
	if !ok1 || !ok2 {
		return nil
	}

	existing, err := s.resources.List(ctx, domain.KindReservation)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == selfID || other.Status != domain.StatusApproved {
			continue
		}
		if f, ok := domain.AsNumber(other.Fields["facility_id"]); !ok || f != facility {
			continue
		}
		oStart, ok1 := domain.ParseTime(other.Fields["start_time"])
		oEnd, ok2 := domain.ParseTime(other.Fields["end_time"])
		if ok1 && ok2 && overlaps(start, end, oStart, oEnd) {
			return apperrors.NewConflict(ReservationConflictDetail)
		}
	}
	return nil
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func (s *ResourceService) load(ctx context.Context, kind domain.Kind, id int64) (*domain.Resource, error) {
	res, err := s.resources.GetByID(ctx, kind, id)
	if err != nil {
		return nil, s.mapNotFound(kind, err)
	}
	if res.Fields == nil {
		res.Fields = domain.Fields{}
	}
	return res, nil
}

func (s *ResourceService) mapNotFound(kind domain.Kind, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewDomainError("NOT_FOUND", notFoundDetails[kind], http.StatusNotFound)
	}
	return err
}

func schemaFor(kind domain.Kind) (domain.Schema, error) {
	schema, err := domain.SchemaFor(kind)
	if err != nil {
		return domain.Schema{}, apperrors.NewDomainError("NOT_FOUND", err.Error(), http.StatusNotFound)
	}
	return schema, nil
}

func rejectUndeclared(schema domain.Schema, fields domain.Fields) error {
	errs := map[string]string{}
	for name := range fields {
		if _, ok := schema.Field(name); !ok {
			errs[name] = fmt.Sprintf("is not a field of %s", schema.Label)
		}
	}
	if len(errs) > 0 {
		return &apperrors.ValidationError{Fields: errs}
	}
	return nil
}

func (s *ResourceService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
