package dto

import (
	"github.com/spec-kit/intranet/internal/domain"
)

// DataResponse is the success envelope.
type DataResponse struct {
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the failure envelope. Detail is shown to users verbatim.
type ErrorResponse struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// AppendHistoryRequest payload.
type AppendHistoryRequest struct {
	Type        domain.HistoryType `json:"type"`
	Description string             `json:"description"`
	Actor       string             `json:"actor"`
}

// ToEntry converts the request into a history entry.
func (r AppendHistoryRequest) ToEntry() domain.HistoryEntry {
	return domain.HistoryEntry{Type: r.Type, Description: r.Description, Actor: r.Actor}
}
