package domain

import "fmt"

var schemas = map[Kind]Schema{
	KindAsset: {
		Kind:       KindAsset,
		Collection: "assets",
		Label:      "asset",
		Fields: []FieldSpec{
			{Name: "name", Type: FieldString, Required: true},
			{Name: "category", Type: FieldString, Required: true},
			{Name: "serial_number", Type: FieldString},
			{Name: "purchase_date", Type: FieldDate},
			{Name: "purchase_price", Type: FieldNumber},
			{Name: "assigned_to", Type: FieldString},
			{Name: "department", Type: FieldString},
			{Name: "location", Type: FieldString},
			{Name: "last_maintenance_date", Type: FieldDate},
			{Name: "next_maintenance_date", Type: FieldDate},
		},
		Statuses:      []Status{StatusAssetIdle, StatusAssetInUse, StatusAssetRepair, StatusAssetDisposed},
		InitialStatus: StatusAssetIdle,
	},
	KindReservation: {
		Kind:       KindReservation,
		Collection: "reservations",
		Label:      "reservation",
		Fields: []FieldSpec{
			{Name: "facility_id", Type: FieldInteger, Required: true},
			{Name: "start_time", Type: FieldDateTime, Required: true},
			{Name: "end_time", Type: FieldDateTime, Required: true},
			{Name: "purpose", Type: FieldString, Required: true},
			{Name: "repeat_rule", Type: FieldString},
			{Name: "notification_enabled", Type: FieldBool},
		},
		Statuses:      []Status{StatusPending, StatusApproved, StatusDeclined},
		InitialStatus: StatusPending,
		Checks:        []Check{after("start_time", "end_time", false)},
	},
	KindMaintenance: {
		Kind:       KindMaintenance,
		Collection: "facilities/maintenance",
		Label:      "maintenance record",
		Fields: []FieldSpec{
			{Name: "facility_id", Type: FieldInteger, Required: true},
			{Name: "type", Type: FieldString, Required: true},
			{Name: "start_date", Type: FieldDate, Required: true},
			{Name: "end_date", Type: FieldDate, Required: true},
			{Name: "description", Type: FieldString, Required: true},
			{Name: "assigned_to", Type: FieldString, Required: true},
			{Name: "cost", Type: FieldNumber},
			{Name: "notes", Type: FieldString},
		},
		Statuses:      []Status{StatusPlanned, StatusInProgress, StatusDelayed, StatusCompleted},
		InitialStatus: StatusPlanned,
		Defaults:      Fields{"type": "점검"},
		Checks:        []Check{after("start_date", "end_date", true)},
	},
	KindInspection: {
		Kind:       KindInspection,
		Collection: "facilities/inspections",
		Label:      "inspection record",
		Fields: []FieldSpec{
			{Name: "facility_id", Type: FieldInteger, Required: true},
			{Name: "date", Type: FieldDate, Required: true},
			{Name: "type", Type: FieldEnum, Required: true, Options: []string{"정기", "수시"}},
			{Name: "result", Type: FieldEnum, Required: true, Options: []string{"정상", "이상"}},
			{Name: "inspector", Type: FieldString, Required: true},
			{Name: "description", Type: FieldString, Required: true},
		},
		Statuses:      []Status{StatusRegistered},
		InitialStatus: StatusRegistered,
		Defaults:      Fields{"type": "정기", "result": "정상"},
	},
	KindAttendance: {
		Kind:       KindAttendance,
		Collection: "attendances",
		Label:      "attendance record",
		Fields: []FieldSpec{
			{Name: "user_id", Type: FieldInteger, Required: true},
			{Name: "date", Type: FieldDate, Required: true},
			{Name: "type", Type: FieldEnum, Required: true, Options: []string{"출근", "퇴근", "외출", "조퇴", "연장근무"}},
			{Name: "check_in", Type: FieldDateTime},
			{Name: "check_out", Type: FieldDateTime},
			{Name: "memo", Type: FieldString},
		},
		Statuses:      []Status{StatusPending, StatusApproved, StatusReturned},
		InitialStatus: StatusPending,
	},
	KindApprovalLine: {
		Kind:       KindApprovalLine,
		Collection: "approvals/lines",
		Label:      "approval line",
		Fields: []FieldSpec{
			{Name: "approval_id", Type: FieldInteger, Required: true},
			{Name: "approver_id", Type: FieldInteger, Required: true},
			{Name: "order", Type: FieldInteger, Required: true},
			{Name: "comment", Type: FieldString},
		},
		Statuses:      []Status{StatusPending, StatusApproved, StatusReturned},
		InitialStatus: StatusPending,
	},
	KindSchedule: {
		Kind:       KindSchedule,
		Collection: "schedules",
		Label:      "schedule",
		Fields: []FieldSpec{
			{Name: "title", Type: FieldString, Required: true},
			{Name: "content", Type: FieldString},
			{Name: "start_time", Type: FieldDateTime, Required: true},
			{Name: "end_time", Type: FieldDateTime, Required: true},
			{Name: "type", Type: FieldString},
			{Name: "owner_id", Type: FieldInteger},
			{Name: "shared_with", Type: FieldString},
			{Name: "repeat_rule", Type: FieldString},
		},
		Statuses:      []Status{StatusRegistered},
		InitialStatus: StatusRegistered,
		Checks:        []Check{after("start_time", "end_time", false)},
	},
	KindPost: {
		Kind:       KindPost,
		Collection: "posts",
		Label:      "post",
		Fields: []FieldSpec{
			{Name: "board_id", Type: FieldInteger, Required: true},
			{Name: "title", Type: FieldString, Required: true},
			{Name: "content", Type: FieldString, Required: true},
			{Name: "is_notice", Type: FieldBool},
		},
		Statuses:      []Status{StatusPublished},
		InitialStatus: StatusPublished,
	},
}

// Kinds lists every resource kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindAsset, KindReservation, KindMaintenance, KindInspection,
		KindAttendance, KindApprovalLine, KindSchedule, KindPost,
	}
}

// SchemaFor returns the schema of a kind.
func SchemaFor(kind Kind) (Schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return Schema{}, fmt.Errorf("unknown resource kind %q", kind)
	}
	return s, nil
}

// MustSchema is SchemaFor for kinds known at compile time.
func MustSchema(kind Kind) Schema {
	s, err := SchemaFor(kind)
	if err != nil {
		panic(err)
	}
	return s
}
