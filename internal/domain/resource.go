package domain

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Kind identifies one of the closed set of resource variants.
type Kind string

const (
	KindAsset        Kind = "asset"
	KindReservation  Kind = "reservation"
	KindMaintenance  Kind = "maintenance"
	KindInspection   Kind = "inspection"
	KindAttendance   Kind = "attendance"
	KindApprovalLine Kind = "approval_line"
	KindSchedule     Kind = "schedule"
	KindPost         Kind = "post"
)

// Status is a per-kind lifecycle value.
type Status string

// Asset statuses.
const (
	StatusAssetIdle     Status = "대기중"
	StatusAssetInUse    Status = "사용중"
	StatusAssetRepair   Status = "수리중"
	StatusAssetDisposed Status = "폐기"
)

// Approval-style statuses shared by reservations, attendance and approval lines.
const (
	StatusPending  Status = "대기"
	StatusApproved Status = "승인"
	StatusDeclined Status = "거절"
	StatusReturned Status = "반려"
)

// Maintenance statuses.
const (
	StatusPlanned    Status = "예정"
	StatusInProgress Status = "진행중"
	StatusDelayed    Status = "지연"
	StatusCompleted  Status = "완료"
)

// Single-state kinds.
const (
	StatusRegistered Status = "등록"
	StatusPublished  Status = "게시"
)

// Fields holds the declared, kind-specific attributes of a resource.
type Fields map[string]any

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// Resource is a server-assigned record of some kind.
type Resource struct {
	ID     int64
	Status Status
	Fields Fields
}

// Value resolves a field by name; "id" and "status" address the envelope attributes.
func (r Resource) Value(field string) (any, bool) {
	switch field {
	case "id":
		return r.ID, true
	case "status":
		if r.Status == "" {
			return nil, false
		}
		return string(r.Status), true
	}
	v, ok := r.Fields[field]
	return v, ok
}

// Clone returns a copy that does not share its field map.
func (r Resource) Clone() Resource {
	return Resource{ID: r.ID, Status: r.Status, Fields: r.Fields.Clone()}
}

// MarshalJSON flattens the resource into a single object.
func (r Resource) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		flat[k] = v
	}
	if r.ID != 0 {
		flat["id"] = r.ID
	}
	if r.Status != "" {
		flat["status"] = r.Status
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat wire representation.
func (r *Resource) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*r = Resource{Fields: Fields{}}
	if raw, ok := flat["id"]; ok && raw != nil {
		id, ok := raw.(float64)
		if !ok {
			return fmt.Errorf("resource id must be a number, got %T", raw)
		}
		r.ID = int64(id)
	}
	if raw, ok := flat["status"]; ok && raw != nil {
		status, ok := raw.(string)
		if !ok {
			return fmt.Errorf("resource status must be a string, got %T", raw)
		}
		r.Status = Status(status)
	}
	delete(flat, "id")
	delete(flat, "status")
	for k, v := range flat {
		r.Fields[k] = v
	}
	return nil
}
