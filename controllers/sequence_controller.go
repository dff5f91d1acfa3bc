package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/funcdude/crm-webhook/models"
	"github.com/funcdude/crm-webhook/utils"
	"github.com/funcdude/crm-webhook/worker"
)

type SequenceController struct {
	DB         *gorm.DB
	Dispatcher *worker.Dispatcher
	Logger     *log.Logger
}

func NewSequenceController(db *gorm.DB, dispatcher *worker.Dispatcher, logger *log.Logger) *SequenceController {
	return &SequenceController{
		DB:         db,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
}

// CreateSequence creates a new named sequence
func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	var input struct {
		Name        string `json:"name" validate:"required,max=200"`
		Description string `json:"description"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var existing models.Sequence
	if err := sc.DB.Where("name = ?", input.Name).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Sequence with this name already exists", nil)
	}

	sequence := models.Sequence{
		Name:        input.Name,
		Description: input.Description,
	}
	if err := sc.DB.Create(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sequence", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sequence))
}

// GetSequences returns all sequences with their steps
func (sc *SequenceController) GetSequences(c *fiber.Ctx) error {
	var sequences []models.Sequence
	if err := sc.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	}).Find(&sequences).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequences", err)
	}

	return c.JSON(utils.SuccessResponse(sequences))
}

// GetSequence returns a single sequence with ordered steps
func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	var sequence models.Sequence
	err := sc.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	}).First(&sequence, c.Params("id")).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	return c.JSON(utils.SuccessResponse(sequence))
}

// UpsertStep adds a step to a sequence, updating in place when the step
// number already exists
func (sc *SequenceController) UpsertStep(c *fiber.Ctx) error {
	var input struct {
		StepNumber int    `json:"step_number" validate:"required,min=1"`
		DelayDays  *int   `json:"delay_days" validate:"required"`
		Subject    string `json:"subject" validate:"required"`
		Body       string `json:"body" validate:"required"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if *input.DelayDays < 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "delay_days must not be negative", nil)
	}

	var sequence models.Sequence
	if err := sc.DB.First(&sequence, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	var step models.SequenceStep
	err := sc.DB.Where("sequence_id = ? AND step_number = ?", sequence.ID, input.StepNumber).
		First(&step).Error

	created := false
	switch {
	case err == nil:
		step.DelayDays = *input.DelayDays
		step.Subject = input.Subject
		step.Body = input.Body
		if err := sc.DB.Save(&step).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update step", err)
		}
	case err == gorm.ErrRecordNotFound:
		step = models.SequenceStep{
			SequenceID: sequence.ID,
			StepNumber: input.StepNumber,
			DelayDays:  *input.DelayDays,
			Subject:    input.Subject,
			Body:       input.Body,
		}
		if err := sc.DB.Create(&step).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create step", err)
		}
		created = true
	default:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch step", err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(utils.SuccessResponse(step))
}

// EnrollContacts enrolls contacts into a sequence. A contact already
// enrolled is reset to the start rather than duplicated.
func (sc *SequenceController) EnrollContacts(c *fiber.Ctx) error {
	var input struct {
		ContactIDs []uint `json:"contact_ids"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if len(input.ContactIDs) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No contacts selected for enrollment", nil)
	}

	var sequence models.Sequence
	if err := sc.DB.First(&sequence, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	now := time.Now()
	enrolled := 0
	for _, contactID := range input.ContactIDs {
		var contact models.Contact
		if err := sc.DB.First(&contact, contactID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
			}
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
		}

		var enrollment models.Enrollment
		err := sc.DB.Where("contact_id = ? AND sequence_id = ?", contact.ID, sequence.ID).
			First(&enrollment).Error

		switch {
		case err == nil:
			// Re-enrollment resets progression on the existing row
			enrollment.CurrentStep = 0
			enrollment.Status = models.EnrollmentActive
			enrollment.StartedAt = &now
			enrollment.LastSentAt = nil
			enrollment.NextSendAt = &now
			if err := sc.DB.Save(&enrollment).Error; err != nil {
				return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to re-enroll contact", err)
			}
		case err == gorm.ErrRecordNotFound:
			enrollment = models.Enrollment{
				ContactID:  contact.ID,
				SequenceID: sequence.ID,
				CurrentStep: 0,
				Status:      models.EnrollmentActive,
				StartedAt:   &now,
				NextSendAt:  &now,
			}
			if err := sc.DB.Create(&enrollment).Error; err != nil {
				return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to enroll contact", err)
			}
		default:
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch enrollment", err)
		}
		enrolled++
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"enrolled": enrolled,
	}))
}

// GetEnrollments lists a sequence's enrollments with their contacts
func (sc *SequenceController) GetEnrollments(c *fiber.Ctx) error {
	var sequence models.Sequence
	if err := sc.DB.First(&sequence, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	status := c.Query("status")
	query := sc.DB.Where("sequence_id = ?", sequence.ID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var enrollments []models.Enrollment
	if err := query.Preload("Contact").Find(&enrollments).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch enrollments", err)
	}

	return c.JSON(utils.SuccessResponse(enrollments))
}

// StopEnrollment manually halts an active enrollment
func (sc *SequenceController) StopEnrollment(c *fiber.Ctx) error {
	var enrollment models.Enrollment
	if err := sc.DB.First(&enrollment, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Enrollment not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch enrollment", err)
	}

	if enrollment.Status != models.EnrollmentActive {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Enrollment is not active", nil)
	}

	if err := sc.DB.Model(&enrollment).Updates(map[string]interface{}{
		"status":       models.EnrollmentStopped,
		"next_send_at": nil,
	}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to stop enrollment", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Enrollment stopped",
	}))
}

// RunDispatch triggers one dispatch cycle and reports the outcome
func (sc *SequenceController) RunDispatch(c *fiber.Ctx) error {
	result := sc.Dispatcher.RunCycle()
	return c.JSON(utils.SuccessResponse(result))
}
