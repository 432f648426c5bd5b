package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/events"
	"github.com/spec-kit/intranet/internal/repository"
	apperrors "github.com/spec-kit/intranet/pkg/util/errorutil"
)

func newService(t *testing.T) (*ResourceService, *[]events.Event) {
	t.Helper()
	mem := repository.NewMemoryStore()
	d := events.NewInMemoryDispatcher()
	var published []events.Event
	d.SubscribeAll(func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	})
	return NewResourceService(ResourceDependencies{
		ResourceRepo: mem.Resources(),
		HistoryRepo:  mem.History(),
		Dispatcher:   d,
	}), &published
}

func reservation(facility int64, start, end string) domain.Resource {
	return domain.Resource{Fields: domain.Fields{
		"facility_id": facility,
		"start_time":  start,
		"end_time":    end,
		"purpose":     "회의",
	}}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	return domainErr.HTTPStatus
}

func TestCreateAppliesDefaultsAndInitialStatus(t *testing.T) {
	svc, published := newService(t)
	ctx := context.Background()

	res, err := svc.Create(ctx, domain.KindInspection, "홍길동", domain.Resource{Fields: domain.Fields{
		"facility_id": int64(1),
		"date":        "2024-03-05",
		"inspector":   "김점검",
		"description": "소방 점검",
	}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRegistered, res.Status)
	assert.Equal(t, "정기", res.Fields["type"])
	assert.Equal(t, "정상", res.Fields["result"])

	require.Len(t, *published, 1)
	assert.Equal(t, events.EventResourceCreated, (*published)[0].Type)
	assert.Equal(t, "홍길동", (*published)[0].Actor)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.KindAsset, "", domain.Resource{Fields: domain.Fields{"name": "노트북"}})
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "category")

	_, err = svc.Create(ctx, domain.KindAsset, "", domain.Resource{Status: domain.StatusAssetInUse, Fields: domain.Fields{"name": "a", "category": "b"}})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "status")

	_, err = svc.Create(ctx, domain.KindAsset, "", domain.Resource{Fields: domain.Fields{"name": "a", "category": "b", "color": "red"}})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "color")

	_, err = svc.Create(ctx, "vehicle", "", domain.Resource{})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestReservationConflictOnlyAgainstApproved(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.KindReservation, "", reservation(1, "2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"))
	require.NoError(t, err)

	second, err := svc.Create(ctx, domain.KindReservation, "", reservation(1, "2024-05-01T10:30:00Z", "2024-05-01T11:30:00Z"))
	require.NoError(t, err, "pending reservations do not block each other")

	_, err = svc.Transition(ctx, domain.KindReservation, first.ID, RouteStatus, "", domain.Fields{"status": "승인"})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, domain.KindReservation, second.ID, RouteStatus, "", domain.Fields{"status": "승인"})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	_, err = svc.Create(ctx, domain.KindReservation, "", reservation(1, "2024-05-01T10:59:00Z", "2024-05-01T12:00:00Z"))
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, ReservationConflictDetail, domainErr.Message)

	_, err = svc.Create(ctx, domain.KindReservation, "", reservation(1, "2024-05-01T11:00:00Z", "2024-05-01T12:00:00Z"))
	assert.NoError(t, err, "back-to-back ranges do not overlap")

	_, err = svc.Create(ctx, domain.KindReservation, "", reservation(2, "2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"))
	assert.NoError(t, err, "other facility")

	_, err = svc.Update(ctx, domain.KindReservation, first.ID, "", domain.Fields{"purpose": "변경"})
	assert.NoError(t, err, "a reservation does not conflict with itself")
}

func TestTransitionEnforcesWorkflow(t *testing.T) {
	svc, published := newService(t)
	ctx := context.Background()

	asset, err := svc.Create(ctx, domain.KindAsset, "", domain.Resource{Fields: domain.Fields{"name": "노트북", "category": "IT"}})
	require.NoError(t, err)

	res, err := svc.Transition(ctx, domain.KindAsset, asset.ID, RouteStatus, "관리자", domain.Fields{"status": "폐기"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssetDisposed, res.Status)
	last := (*published)[len(*published)-1]
	assert.Equal(t, events.EventStatusChanged, last.Type)

	_, err = svc.Transition(ctx, domain.KindAsset, asset.ID, RouteStatus, "", domain.Fields{"status": "대기중"})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	_, err = svc.Transition(ctx, domain.KindAsset, asset.ID, RouteStatus, "", domain.Fields{"status": "없음"})
	var vErr *apperrors.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.Transition(ctx, domain.KindAsset, asset.ID, "teleport", "", nil)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = svc.Transition(ctx, domain.KindAsset, 999, RouteStatus, "", domain.Fields{"status": "사용중"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestAssignmentRoute(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	asset, err := svc.Create(ctx, domain.KindAsset, "", domain.Resource{Fields: domain.Fields{"name": "노트북", "category": "IT"}})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, domain.KindAsset, asset.ID, RouteAssignment, "", domain.Fields{"type": "할당"})
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "user")

	res, err := svc.Transition(ctx, domain.KindAsset, asset.ID, RouteAssignment, "", domain.Fields{"type": "할당", "user": "김철수", "department": "개발팀"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssetInUse, res.Status)
	assert.Equal(t, "김철수", res.Fields["assigned_to"])
	assert.Equal(t, "개발팀", res.Fields["department"])

	res, err = svc.Transition(ctx, domain.KindAsset, asset.ID, RouteAssignment, "", domain.Fields{"type": "반납"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssetIdle, res.Status)
	assert.NotContains(t, res.Fields, "assigned_to")

	_, err = svc.Transition(ctx, domain.KindReservation, asset.ID, RouteAssignment, "", domain.Fields{"type": "할당"})
	assert.Error(t, err)
}

func TestUpdateRules(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	post, err := svc.Create(ctx, domain.KindPost, "", domain.Resource{Fields: domain.Fields{"board_id": int64(1), "title": "공지", "content": "내용"}})
	require.NoError(t, err)

	_, err = svc.Update(ctx, domain.KindPost, post.ID, "", domain.Fields{"status": "게시"})
	var vErr *apperrors.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.Update(ctx, domain.KindPost, post.ID, "", domain.Fields{"title": ""})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "is required", vErr.Fields["title"])

	res, err := svc.Update(ctx, domain.KindPost, post.ID, "", domain.Fields{"title": "수정된 공지", "is_notice": true})
	require.NoError(t, err)
	assert.Equal(t, "수정된 공지", res.Fields["title"])
	assert.Equal(t, "내용", res.Fields["content"])

	_, err = svc.Update(ctx, domain.KindPost, 404, "", domain.Fields{"title": "x"})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "게시글을 찾을 수 없습니다.", domainErr.Message)
}

func TestHistoryAndDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	asset, err := svc.Create(ctx, domain.KindAsset, "", domain.Resource{Fields: domain.Fields{"name": "노트북", "category": "IT"}})
	require.NoError(t, err)

	_, err = svc.AppendHistory(ctx, domain.KindAsset, asset.ID, "관리자", domain.HistoryEntry{})
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = svc.AppendHistory(ctx, domain.KindAsset, asset.ID, "관리자", domain.HistoryEntry{Type: "분실", Description: "x"})
	require.ErrorAs(t, err, &vErr)

	entry, err := svc.AppendHistory(ctx, domain.KindAsset, asset.ID, "관리자", domain.HistoryEntry{Description: "대기중 → 수리중"})
	require.NoError(t, err)
	assert.Equal(t, domain.HistoryStatusChange, entry.Type)
	assert.Equal(t, "관리자", entry.Actor)

	entries, err := svc.History(ctx, domain.KindAsset, asset.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, svc.Delete(ctx, domain.KindAsset, asset.ID, ""))
	err = svc.Delete(ctx, domain.KindAsset, asset.ID, "")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	entries, err = svc.History(ctx, domain.KindAsset, asset.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "대기중 → 수리중", entries[0].Description)

	_, err = svc.History(ctx, domain.KindAsset, 9999)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	assert.False(t, errors.Is(err, context.Canceled))
}
