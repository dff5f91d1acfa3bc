package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/funcdude/crm-webhook/models"
	"github.com/funcdude/crm-webhook/utils"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

// GetDashboardStats returns high-level counts for the operator dashboard
func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	var contacts, sequences int64
	dc.DB.Model(&models.Contact{}).Count(&contacts)
	dc.DB.Model(&models.Sequence{}).Count(&sequences)

	enrollmentCounts := make(map[string]int64)
	for _, status := range []string{
		models.EnrollmentActive,
		models.EnrollmentCompleted,
		models.EnrollmentReplied,
		models.EnrollmentBounced,
		models.EnrollmentStopped,
	} {
		var n int64
		dc.DB.Model(&models.Enrollment{}).Where("status = ?", status).Count(&n)
		enrollmentCounts[status] = n
	}

	emailCounts := make(map[string]int64)
	var totalSent int64
	dc.DB.Model(&models.SentEmail{}).Count(&totalSent)
	emailCounts["total"] = totalSent
	for _, status := range []string{
		models.EmailDelivered,
		models.EmailOpened,
		models.EmailClicked,
		models.EmailBounced,
	} {
		var n int64
		dc.DB.Model(&models.SentEmail{}).Where("status = ?", status).Count(&n)
		emailCounts[status] = n
	}

	var replied int64
	dc.DB.Model(&models.SentEmail{}).Where("replied_at IS NOT NULL").Count(&replied)
	emailCounts["replied"] = replied

	var events, unprocessed int64
	dc.DB.Model(&models.InboundEvent{}).Count(&events)
	dc.DB.Model(&models.InboundEvent{}).Where("processed = ?", false).Count(&unprocessed)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"contacts":    contacts,
		"sequences":   sequences,
		"enrollments": enrollmentCounts,
		"emails":      emailCounts,
		"events": fiber.Map{
			"total":       events,
			"unprocessed": unprocessed,
		},
	}))
}
