package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/intranet/internal/config"
	apperrors "github.com/spec-kit/intranet/pkg/util/errorutil"
)

type harness struct {
	app    *App
	out    bytes.Buffer
	errOut bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	cfg := &config.Config{
		Client: config.ClientConfig{BaseURL: "http://127.0.0.1:1/api", TimeoutSeconds: 1},
		Auth: config.AuthConfig{
			JWTSecret:             "cli-test",
			AccessTokenTTLMinutes: 60,
			DevUserID:             "1",
			DevUserName:           "관리자",
		},
	}
	h.app = NewApp(cfg, &h.out, &h.errOut)
	return h
}

func (h *harness) run(args ...string) (string, string, error) {
	h.out.Reset()
	h.errOut.Reset()
	err := h.app.Execute(context.Background(), append([]string{"--embedded", "--log-level", "error"}, args...))
	return h.out.String(), h.errOut.String(), err
}

func TestAssetLifecycle(t *testing.T) {
	h := newHarness(t)

	out, notes, err := h.run("create", "asset",
		"--set", "name=노트북", "--set", "category=IT",
		"--set", "purchase_date=2023-02-01", "--set", "purchase_price=1500000")
	require.NoError(t, err, notes)
	assert.Contains(t, out, "asset #1")
	assert.Contains(t, out, "대기중")
	assert.Contains(t, notes, "asset #1 등록되었습니다.")

	out, notes, err = h.run("transition", "assets", "1", "assign", "--set", "user=김철수", "--set", "department=개발팀")
	require.NoError(t, err, notes)
	assert.Contains(t, out, "사용중")
	assert.Contains(t, out, "김철수")
	assert.Contains(t, notes, "대기중 → 사용중")

	out, _, err = h.run("update", "asset", "1", "--set", "status=수리중", "--set", "location=3층")
	require.NoError(t, err)
	assert.Contains(t, out, "수리중")
	assert.Contains(t, out, "3층")

	out, _, err = h.run("history", "asset", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "할당")
	assert.Contains(t, out, "사용중 → 수리중")
	assert.Contains(t, out, "관리자")

	out, _, err = h.run("stats", "asset", "--sum", "purchase_price", "--bucket", "purchase_date", "--unit", "year")
	require.NoError(t, err)
	assert.Contains(t, out, "sum(purchase_price) = 1500000")
	assert.Contains(t, out, "2023")

	_, _, err = h.run("transition", "asset", "1", "dispose", "--note", "노후")
	require.NoError(t, err)

	_, notes, err = h.run("transition", "asset", "1", "대기중")
	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields["status"], "terminal")
	assert.Contains(t, notes, "status")

	_, notes, err = h.run("delete", "asset", "1")
	require.NoError(t, err)
	assert.Contains(t, notes, "asset #1 삭제되었습니다.")

	_, _, err = h.run("get", "asset", "1")
	var serverErr *apperrors.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "자산을 찾을 수 없습니다.", serverErr.Detail)
}

func TestCreateReportsFieldErrors(t *testing.T) {
	h := newHarness(t)

	_, notes, err := h.run("create", "asset", "--set", "name=모니터")
	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "category")
	assert.Contains(t, notes, "category")

	_, _, err = h.run("create", "asset", "--set", "purchase_price=abc")
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "purchase_price")

	_, _, err = h.run("create", "asset", "--set", "novalue")
	assert.ErrorIs(t, err, errInvalidAssignment)

	_, _, err = h.run("list", "vehicle")
	assert.ErrorContains(t, err, "unknown resource kind")
}

func TestCreateFromDraftAndReservationConflict(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	draft := filepath.Join(dir, "reservation.yaml")
	require.NoError(t, os.WriteFile(draft, []byte(strings.Join([]string{
		"facility_id: 3",
		`start_time: "2024-05-01T10:00:00Z"`,
		`end_time: "2024-05-01T11:00:00Z"`,
		"purpose: 주간 회의",
	}, "\n")), 0o600))

	_, notes, err := h.run("create", "reservation", "-f", draft)
	require.NoError(t, err, notes)
	_, _, err = h.run("transition", "reservation", "1", "approve")
	require.NoError(t, err)

	_, notes, err = h.run("create", "reservation", "-f", draft, "--set", "purpose=면접")
	var serverErr *apperrors.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, 409, serverErr.Status)
	assert.Contains(t, notes, "해당 시간에 이미 승인된 예약이 있습니다.")

	out, _, err := h.run("list", "reservations", "--csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "1,승인,3,"), lines[1])
}

func TestExportAndDashboard(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{"create", "asset", "--set", "name=노트북", "--set", "category=IT", "--set", "purchase_date=2022-01-10"},
		{"create", "asset", "--set", "name=의자", "--set", "category=가구", "--set", "purchase_date=2023-06-01"},
		{"create", "inspection", "--set", "facility_id=1", "--set", "date=2024-01-02", "--set", "inspector=김점검", "--set", "description=소방", "--set", "result=이상"},
		{"create", "maintenance", "--set", "facility_id=1", "--set", "start_date=2024-01-03", "--set", "end_date=2024-01-04",
			"--set", "description=공조기", "--set", "assigned_to=시설팀", "--set", "cost=250000"},
	} {
		_, notes, err := h.run(args...)
		require.NoError(t, err, notes)
	}

	path := filepath.Join(t.TempDir(), "assets.csv")
	out, _, err := h.run("export", "asset", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 2 asset rows")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(raw)), "\n"), 3)

	out, _, err = h.run("dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "assets: 2 total, 0 in use, 0 under repair")
	assert.Contains(t, out, "가구")
	assert.Contains(t, out, "2022")
	assert.Contains(t, out, "이상")
	assert.Contains(t, out, "maintenance cost total: 250000")
}

func TestParseKind(t *testing.T) {
	for arg, want := range map[string]string{
		"asset":                  "asset",
		"assets":                 "asset",
		"facilities/maintenance": "maintenance",
		"approval-line":          "approval_line",
		"approvals/lines":        "approval_line",
	} {
		kind, err := parseKind(arg)
		require.NoError(t, err, arg)
		assert.Equal(t, want, string(kind))
	}
}
