package worker

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/funcdude/crm-webhook/config"
	"github.com/funcdude/crm-webhook/models"
	"github.com/funcdude/crm-webhook/utils"
)

// newTestDB opens a fresh in-memory database per test
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

// fakeMailer records sends and can be told to fail for given recipients
type fakeMailer struct {
	mu      sync.Mutex
	sent    []utils.OutboundEmail
	failFor map[string]bool
	n       int
}

func (m *fakeMailer) Send(email utils.OutboundEmail) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFor[email.To] {
		return "", errors.New("provider unavailable")
	}
	m.n++
	m.sent = append(m.sent, email)
	return fmt.Sprintf("msg-%d", m.n), nil
}

func newTestDispatcher(db *gorm.DB, mailer utils.Mailer) *Dispatcher {
	return NewDispatcher(db, mailer, log.New(io.Discard, "", 0), "crm@example.com", "reply@example.com", 0)
}

func newTestIngestor(db *gorm.DB) *Ingestor {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewIngestor(db, logger)
}

func createContact(t *testing.T, db *gorm.DB, email, firstName, company string) *models.Contact {
	t.Helper()

	contact := models.Contact{Email: email, FirstName: firstName, Company: company, Source: "manual"}
	require.NoError(t, db.Create(&contact).Error)
	return &contact
}

// createSequence builds a sequence whose step delays are given in order,
// starting at step 1
func createSequence(t *testing.T, db *gorm.DB, name string, delays ...int) *models.Sequence {
	t.Helper()

	sequence := models.Sequence{Name: name}
	require.NoError(t, db.Create(&sequence).Error)

	for i, delay := range delays {
		step := models.SequenceStep{
			SequenceID: sequence.ID,
			StepNumber: i + 1,
			DelayDays:  delay,
			Subject:    fmt.Sprintf("Step %d for {first_name}", i+1),
			Body:       fmt.Sprintf("Body %d, greetings from {company}", i+1),
		}
		require.NoError(t, db.Create(&step).Error)
	}
	return &sequence
}

func createEnrollment(t *testing.T, db *gorm.DB, contactID, sequenceID uint, currentStep int, status string, nextSendAt *time.Time) *models.Enrollment {
	t.Helper()

	now := time.Now()
	enrollment := models.Enrollment{
		ContactID:   contactID,
		SequenceID:  sequenceID,
		CurrentStep: currentStep,
		Status:      status,
		StartedAt:   &now,
		NextSendAt:  nextSendAt,
	}
	require.NoError(t, db.Create(&enrollment).Error)
	return &enrollment
}

func reloadEnrollment(t *testing.T, db *gorm.DB, id uint) *models.Enrollment {
	t.Helper()

	var enrollment models.Enrollment
	require.NoError(t, db.First(&enrollment, id).Error)
	return &enrollment
}

// assertScheduleInvariant checks that next_send_at is set exactly for
// active enrollments
func assertScheduleInvariant(t *testing.T, db *gorm.DB) {
	t.Helper()

	var enrollments []models.Enrollment
	require.NoError(t, db.Find(&enrollments).Error)
	for _, e := range enrollments {
		if e.Status == models.EnrollmentActive {
			require.NotNil(t, e.NextSendAt, "active enrollment %d must have next_send_at", e.ID)
		} else {
			require.Nil(t, e.NextSendAt, "%s enrollment %d must not have next_send_at", e.Status, e.ID)
		}
	}
}
