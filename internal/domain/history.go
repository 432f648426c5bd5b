package domain

import "time"

// HistoryType classifies an audit entry.
type HistoryType string

const (
	HistoryStatusChange HistoryType = "상태변경"
	HistoryAssign       HistoryType = "할당"
	HistoryReturn       HistoryType = "반납"
	HistoryRepair       HistoryType = "수리"
	HistoryDispose      HistoryType = "폐기"
)

// HistoryEntry is an immutable audit record owned by the resource it documents.
type HistoryEntry struct {
	ID          int64       `json:"id"`
	ResourceID  int64       `json:"resource_id"`
	Type        HistoryType `json:"type"`
	Description string      `json:"description"`
	Actor       string      `json:"actor"`
	Timestamp   time.Time   `json:"timestamp"`
}
