package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/funcdude/crm-webhook/config"
	"github.com/funcdude/crm-webhook/models"
	"github.com/funcdude/crm-webhook/utils"
	"github.com/funcdude/crm-webhook/worker"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

type stubMailer struct {
	mu   sync.Mutex
	sent []utils.OutboundEmail
	n    int
}

func (m *stubMailer) Send(email utils.OutboundEmail) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	m.sent = append(m.sent, email)
	return fmt.Sprintf("msg-%d", m.n), nil
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func discardLogrus() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestDispatcher(db *gorm.DB, mailer utils.Mailer) *worker.Dispatcher {
	return worker.NewDispatcher(db, mailer, discardLogger(), "crm@example.com", "reply@example.com", 0)
}

// doJSON fires a JSON request at the app and returns the response
func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func dataOf(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", body)
	return data
}

func seedContact(t *testing.T, db *gorm.DB, email string) *models.Contact {
	t.Helper()

	contact := models.Contact{Email: email, Source: "manual"}
	require.NoError(t, db.Create(&contact).Error)
	return &contact
}

func seedSequence(t *testing.T, db *gorm.DB, name string, delays ...int) *models.Sequence {
	t.Helper()

	sequence := models.Sequence{Name: name}
	require.NoError(t, db.Create(&sequence).Error)
	for i, delay := range delays {
		step := models.SequenceStep{
			SequenceID: sequence.ID,
			StepNumber: i + 1,
			DelayDays:  delay,
			Subject:    fmt.Sprintf("Step %d", i+1),
			Body:       fmt.Sprintf("Body %d", i+1),
		}
		require.NoError(t, db.Create(&step).Error)
	}
	return &sequence
}

func seedEnrollment(t *testing.T, db *gorm.DB, contactID, sequenceID uint, status string, nextSendAt *time.Time) *models.Enrollment {
	t.Helper()

	now := time.Now()
	enrollment := models.Enrollment{
		ContactID:  contactID,
		SequenceID: sequenceID,
		Status:     status,
		StartedAt:  &now,
		NextSendAt: nextSendAt,
	}
	require.NoError(t, db.Create(&enrollment).Error)
	return &enrollment
}
