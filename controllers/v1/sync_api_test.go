package apiv1

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"ats-sync-backend/config"
	"ats-sync-backend/lib/debounce"
	auditstore "ats-sync-backend/lib/notify/audit-store"
	"ats-sync-backend/lib/resync"
	"ats-sync-backend/lib/triggers"
	authutils "ats-sync-backend/lib/utils/auth-utils"
	"ats-sync-backend/lib/utils/lock"
	"ats-sync-backend/middleware"
	"ats-sync-backend/models"
	dbmodels "ats-sync-backend/models/db"
)

const testSecret = "test-secret"

type triggersMock struct {
	rows    []int
	fields  map[string]string
	formErr error
	rowsErr error
}

func (m *triggersMock) OnCandidateRowsEdited(ctx context.Context, rows []int) (triggers.Result, error) {
	m.rows = rows
	return triggers.Result{Ran: true, JobIDs: []string{"2025-0001"}}, m.rowsErr
}

func (m *triggersMock) OnActiveRowsEdited(ctx context.Context, rows []int) (triggers.Result, error) {
	m.rows = rows
	return triggers.Result{Ran: true}, m.rowsErr
}

func (m *triggersMock) OnRequisitionRowsEdited(ctx context.Context, rows []int) (triggers.Result, error) {
	m.rows = rows
	return triggers.Result{Ran: true}, m.rowsErr
}

func (m *triggersMock) OnStructuralChange(ctx context.Context) (triggers.Result, error) {
	return triggers.Result{Ran: true}, nil
}

func (m *triggersMock) OnFormSubmission(ctx context.Context, fields map[string]string) (triggers.Result, error) {
	m.fields = fields
	return triggers.Result{Ran: true, Row: 7}, m.formErr
}

func (m *triggersMock) EnforceUniqueEmail(ctx context.Context, rows []int) (int, error) {
	return 0, nil
}

type queueMock struct{}

func (queueMock) Enqueue(ctx context.Context, jobIDs []string) error {
	return nil
}

func (queueMock) EnqueueAll(ctx context.Context) error {
	return nil
}

func (queueMock) Pending() (debounce.View, error) {
	return debounce.View{Scope: debounce.JobScope("2025-0002", "2025-0001"), TriggerID: "t1"}, nil
}

func (queueMock) CleanupStale() int {
	return 0
}

type resyncMock struct {
	calls int
}

func (m *resyncMock) Run(ctx context.Context) (resync.Report, error) {
	m.calls++
	return resync.Report{Ran: true, OK: true}, nil
}

type auditMock struct{}

func (auditMock) Create(rec dbmodels.SyncLog) (string, error) {
	return "", nil
}

func (auditMock) ListRecent(limit int) ([]dbmodels.SyncLog, error) {
	rec := dbmodels.SyncLog{Level: models.LogLevelWarn, Message: "дубль email очищен", Context: `{"row":3}`}
	rec.ID = "log-1"
	return []dbmodels.SyncLog{rec}, nil
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newApp(t *testing.T) *fiber.App {
	conf := &config.Configuration{}
	conf.Auth.JWTSecret = testSecret
	config.Conf = conf

	app := fiber.New()
	api := fiber.New()
	app.Mount("/api/v1", api)
	api.Use(middleware.AuthorizationRequired())
	InitSyncApiRouters(api)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string, isAdmin bool) (int, response) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	token, err := authutils.GetToken(testSecret, "user-1", "Sheet Bot", isAdmin, time.Hour)
	require.Nil(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.Nil(t, err)
	defer resp.Body.Close()
	var result response
	raw, err := io.ReadAll(resp.Body)
	require.Nil(t, err)
	if len(raw) != 0 {
		require.Nil(t, json.Unmarshal(raw, &result))
	}
	return resp.StatusCode, result
}

func TestSyncApi(t *testing.T) {
	tm := &triggersMock{}
	rm := &resyncMock{}
	triggers.Instance = tm
	debounce.Instance = queueMock{}
	resync.Instance = rm
	auditstore.Instance = auditMock{}
	app := newApp(t)

	t.Run(`token is required`, func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/sync/queue", nil)
		resp, err := app.Test(req, -1)
		require.Nil(t, err)
		require.NotEqual(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run(`candidate rows`, func(t *testing.T) {
		code, resp := call(t, app, "POST", "/api/v1/sync/candidates/edited", `{"rows":[2,5]}`, false)
		require.Equal(t, fiber.StatusOK, code)
		require.Equal(t, "success", resp.Status)
		require.Equal(t, []int{2, 5}, tm.rows)
		require.JSONEq(t, `{"ran":true,"job_ids":["2025-0001"]}`, string(resp.Data))

		code, resp = call(t, app, "POST", "/api/v1/sync/active/edited", `{"rows":[]}`, false)
		require.Equal(t, fiber.StatusBadRequest, code)
		require.Equal(t, "fail", resp.Status)

		code, _ = call(t, app, "POST", "/api/v1/sync/requisitions/edited", `{"rows":[0]}`, false)
		require.Equal(t, fiber.StatusBadRequest, code)
	})

	t.Run(`busy document`, func(t *testing.T) {
		tm.rowsErr = errors.Wrap(lock.ErrLockBusy, "правка не обработана")
		defer func() { tm.rowsErr = nil }()
		code, resp := call(t, app, "POST", "/api/v1/sync/active/edited", `{"rows":[3]}`, false)
		require.Equal(t, fiber.StatusConflict, code)
		require.Contains(t, resp.Message, "документ занят")
	})

	t.Run(`form`, func(t *testing.T) {
		code, resp := call(t, app, "POST", "/api/v1/sync/form", `{"fields":{"Email":"eve@x.com","Job ID":"2025-0001"}}`, false)
		require.Equal(t, fiber.StatusOK, code)
		require.Equal(t, map[string]string{"Email": "eve@x.com", "Job ID": "2025-0001"}, tm.fields)
		require.JSONEq(t, `{"ran":true,"job_ids":null,"row":7}`, string(resp.Data))

		tm.formErr = errors.Wrap(triggers.ErrInvalidPayload, "не указан Job ID")
		defer func() { tm.formErr = nil }()
		code, resp = call(t, app, "POST", "/api/v1/sync/form", `{"fields":{"Email":"eve@x.com"}}`, false)
		require.Equal(t, fiber.StatusBadRequest, code)
		require.Contains(t, resp.Message, "не указан Job ID")

		code, _ = call(t, app, "POST", "/api/v1/sync/form", `{"fields":{}}`, false)
		require.Equal(t, fiber.StatusBadRequest, code)
	})

	t.Run(`queue`, func(t *testing.T) {
		code, resp := call(t, app, "GET", "/api/v1/sync/queue", "", false)
		require.Equal(t, fiber.StatusOK, code)
		var view debounce.View
		require.Nil(t, json.Unmarshal(resp.Data, &view))
		require.Equal(t, []string{"2025-0001", "2025-0002"}, view.Scope.JobIDs)
		require.Equal(t, "t1", view.TriggerID)
	})

	t.Run(`admin routes`, func(t *testing.T) {
		code, _ := call(t, app, "POST", "/api/v1/sync/resync", "", false)
		require.Equal(t, fiber.StatusForbidden, code)
		require.Zero(t, rm.calls)

		code, resp := call(t, app, "POST", "/api/v1/sync/resync", "", true)
		require.Equal(t, fiber.StatusOK, code)
		require.Equal(t, 1, rm.calls)
		require.JSONEq(t, `{"ran":true,"ok":true,"steps":null}`, string(resp.Data))

		code, resp = call(t, app, "GET", "/api/v1/sync/log?limit=10", "", true)
		require.Equal(t, fiber.StatusOK, code)
		require.Contains(t, string(resp.Data), `"message":"дубль email очищен"`)
		require.Contains(t, string(resp.Data), `"row":3`)
	})
}
