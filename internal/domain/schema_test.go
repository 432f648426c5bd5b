package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationValidateRequiredFields(t *testing.T) {
	schema := MustSchema(KindReservation)

	errs := schema.Validate(Fields{"facility_id": 0, "purpose": "  "}, StatusPending)

	assert.Equal(t, "is required", errs["facility_id"])
	assert.Equal(t, "is required", errs["start_time"])
	assert.Equal(t, "is required", errs["end_time"])
	assert.Equal(t, "is required", errs["purpose"])
	assert.NotContains(t, errs, "repeat_rule")
}

func TestReservationValidateTimeOrder(t *testing.T) {
	schema := MustSchema(KindReservation)
	fields := Fields{
		"facility_id": int64(3),
		"start_time":  "2024-05-01T10:00:00Z",
		"end_time":    "2024-05-01T09:00:00Z",
		"purpose":     "주간 회의",
	}

	errs := schema.Validate(fields, StatusPending)
	assert.Equal(t, map[string]string{"end_time": "must be after start_time"}, errs)

	fields["end_time"] = "2024-05-01T11:00:00Z"
	assert.Empty(t, schema.Validate(fields, StatusPending))
}

func TestValidateFormatsAndStatus(t *testing.T) {
	schema := MustSchema(KindInspection)
	fields := Fields{
		"facility_id": 1.5,
		"date":        "05/01/2024",
		"type":        "연간",
		"result":      "정상",
		"inspector":   "김점검",
		"description": "소방 설비",
	}

	errs := schema.Validate(fields, "폐기")

	assert.Equal(t, "must be an integer", errs["facility_id"])
	assert.Equal(t, "must be a date (YYYY-MM-DD)", errs["date"])
	assert.Equal(t, "must be one of 정기, 수시", errs["type"])
	assert.Contains(t, errs, "status")
	assert.NotContains(t, errs, "result")
}

func TestMaintenanceAllowsSameDayRange(t *testing.T) {
	schema := MustSchema(KindMaintenance)
	fields := Fields{
		"facility_id": int64(2),
		"type":        "점검",
		"start_date":  "2024-03-02",
		"end_date":    "2024-03-02",
		"description": "공조기 점검",
		"assigned_to": "시설팀",
	}
	assert.Empty(t, schema.Validate(fields, StatusPlanned))
}

func TestCoerce(t *testing.T) {
	schema := MustSchema(KindAsset)

	v, err := schema.Coerce("purchase_price", "1200000")
	require.NoError(t, err)
	assert.Equal(t, 1200000.0, v)

	_, err = schema.Coerce("purchase_price", "abc")
	assert.Error(t, err)

	_, err = schema.Coerce("color", "red")
	assert.Error(t, err)

	v, err = MustSchema(KindReservation).Coerce("facility_id", "7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestDeclaredDropsUnknownFields(t *testing.T) {
	out := MustSchema(KindPost).Declared(Fields{"title": "공지", "views": 10})
	assert.Equal(t, Fields{"title": "공지"}, out)
}

func TestResourceWireFormatIsFlat(t *testing.T) {
	var res Resource
	require.NoError(t, json.Unmarshal([]byte(`{"id":12,"status":"사용중","name":"모니터1","purchase_price":300000}`), &res))

	assert.Equal(t, int64(12), res.ID)
	assert.Equal(t, StatusAssetInUse, res.Status)
	assert.Equal(t, Fields{"name": "모니터1", "purchase_price": 300000.0}, res.Fields)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":12,"status":"사용중","name":"모니터1","purchase_price":300000}`, string(out))
}

func TestResourceValue(t *testing.T) {
	res := Resource{ID: 4, Status: StatusPending, Fields: Fields{"purpose": "면접"}}

	v, ok := res.Value("status")
	assert.True(t, ok)
	assert.Equal(t, "대기", v)

	v, ok = res.Value("id")
	assert.True(t, ok)
	assert.Equal(t, int64(4), v)

	_, ok = res.Value("missing")
	assert.False(t, ok)
}

func TestSchemaForUnknownKind(t *testing.T) {
	_, err := SchemaFor("vehicle")
	assert.Error(t, err)
	for _, kind := range Kinds() {
		s := MustSchema(kind)
		assert.True(t, s.HasStatus(s.InitialStatus), kind)
	}
}
