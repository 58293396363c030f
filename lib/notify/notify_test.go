package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"ats-sync-backend/models"
	dbmodels "ats-sync-backend/models/db"
	wsmodels "ats-sync-backend/models/ws"
)

type hubMock struct {
	sent []wsmodels.ServerMessage
}

func (h *hubMock) AddClient(userID string, conn *websocket.Conn) {}
func (h *hubMock) DeleteClient(userID string)                    {}
func (h *hubMock) SendMessage(msg wsmodels.ServerMessage)        { h.sent = append(h.sent, msg) }
func (h *hubMock) Broadcast(msg wsmodels.ServerMessage)          { h.sent = append(h.sent, msg) }
func (h *hubMock) IsConnected(userID string) bool                { return true }

type auditMock struct {
	recs []dbmodels.SyncLog
	err  error
}

func (a *auditMock) Create(rec dbmodels.SyncLog) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.recs = append(a.recs, rec)
	return "1", nil
}

func (a *auditMock) ListRecent(limit int) ([]dbmodels.SyncLog, error) {
	return a.recs, nil
}

type mailerMock struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func (m *mailerMock) SendEMail(from, to, message, subject string) error {
	m.mu.Lock()
	m.sent = append(m.sent, to+"|"+subject)
	m.mu.Unlock()
	close(m.done)
	return nil
}

type panicHub struct {
	hubMock
}

func (p *panicHub) Broadcast(msg wsmodels.ServerMessage) {
	panic("hub is down")
}

func TestNotify(t *testing.T) {
	t.Run(`toast is broadcast`, func(t *testing.T) {
		hub := &hubMock{}
		n := NewInstance(hub, nil, nil, Config{})
		n.Notify("Дубль email очищен", models.SeverityWarning)
		require.Len(t, hub.sent, 1)
		require.Equal(t, "warning", hub.sent[0].Code)
		require.Equal(t, "Дубль email очищен", hub.sent[0].Msg)
	})

	t.Run(`audit record with context`, func(t *testing.T) {
		audit := &auditMock{}
		n := NewInstance(nil, audit, nil, Config{})
		n.Log(models.LogLevelWarn, "повторный ключ", map[string]any{"row": 5})
		n.Log(models.LogLevelDebug, "не пишется", nil)
		require.Len(t, audit.recs, 1)
		require.Equal(t, models.LogLevelWarn, audit.recs[0].Level)
		require.JSONEq(t, `{"row":5}`, audit.recs[0].Context)
	})

	t.Run(`failures never reach the caller`, func(t *testing.T) {
		n := NewInstance(&panicHub{}, &auditMock{err: errors.New("db down")}, nil, Config{})
		require.NotPanics(t, func() {
			n.Notify("msg", models.SeverityError)
			n.Log(models.LogLevelError, "msg", nil)
		})
		require.NotPanics(t, func() {
			NewLogOnly().RequisitionFilled("2025-0001", "Designer", "Ann")
		})
	})

	t.Run(`hire email goes to configured recipient`, func(t *testing.T) {
		mailer := &mailerMock{done: make(chan struct{})}
		n := NewInstance(nil, nil, mailer, Config{HireEmailTo: "hr@x.com", HireEmailFrom: "ats@x.com"})
		n.RequisitionFilled("2025-0001", "Designer", "Ann Smith")
		select {
		case <-mailer.done:
		case <-time.After(time.Second):
			t.Fatal("письмо не отправлено")
		}
		mailer.mu.Lock()
		defer mailer.mu.Unlock()
		require.Equal(t, []string{"hr@x.com|Requisition 2025-0001 filled"}, mailer.sent)
	})
}
