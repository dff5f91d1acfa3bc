package controller

import (
	"encoding/csv"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/funcdude/crm-webhook/models"
	"github.com/funcdude/crm-webhook/utils"
)

type ContactController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewContactController(db *gorm.DB, logger *log.Logger) *ContactController {
	return &ContactController{
		DB:     db,
		Logger: logger,
	}
}

// CreateContact creates a contact, or merge-updates the existing one when
// the email is already known
func (cc *ContactController) CreateContact(c *fiber.Ctx) error {
	var input struct {
		Email     string   `json:"email" validate:"required,email"`
		FirstName string   `json:"first_name" validate:"omitempty,max=100"`
		LastName  string   `json:"last_name" validate:"omitempty,max=100"`
		Company   string   `json:"company" validate:"omitempty,max=200"`
		Title     string   `json:"title" validate:"omitempty,max=200"`
		Source    string   `json:"source" validate:"omitempty,max=100"`
		Tags      []string `json:"tags"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if err := utils.ValidateEmailFormat(input.Email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", err)
	}

	contact, created, err := cc.upsertContact(
		input.Email, input.FirstName, input.LastName, input.Company, input.Title, input.Source, input.Tags)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save contact", err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(utils.SuccessResponse(contact))
}

// upsertContact merges into an existing row by normalized email or creates
// a new one. Empty incoming fields never overwrite stored values.
func (cc *ContactController) upsertContact(email, firstName, lastName, company, title, source string, tags []string) (*models.Contact, bool, error) {
	email = models.NormalizeEmail(email)

	var contact models.Contact
	err := cc.DB.Preload("Tags").Where("email = ?", email).First(&contact).Error

	created := false
	switch {
	case err == nil:
		contact.Merge(firstName, lastName, company, title, source)
		if err := cc.DB.Save(&contact).Error; err != nil {
			return nil, false, err
		}
	case err == gorm.ErrRecordNotFound:
		contact = models.Contact{
			Email:     email,
			FirstName: firstName,
			LastName:  lastName,
			Company:   company,
			Title:     title,
			Source:    source,
		}
		if contact.Source == "" {
			contact.Source = "manual"
		}
		if err := cc.DB.Create(&contact).Error; err != nil {
			return nil, false, err
		}
		created = true
	default:
		return nil, false, err
	}

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || contact.HasTag(tag) {
			continue
		}
		ct := models.ContactTag{ContactID: contact.ID, Tag: tag}
		if err := cc.DB.Create(&ct).Error; err != nil {
			return nil, false, err
		}
		contact.Tags = append(contact.Tags, ct)
	}

	return &contact, created, nil
}

// GetContacts returns paginated contacts with filters
func (cc *ContactController) GetContacts(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	email := c.Query("email")
	company := c.Query("company")
	tag := c.Query("tag")

	query := cc.DB.Model(&models.Contact{})

	if email != "" {
		query = query.Where("email LIKE ?", "%"+strings.ToLower(email)+"%")
	}
	if company != "" {
		query = query.Where("company LIKE ?", "%"+company+"%")
	}
	if tag != "" {
		// Exact tag membership through the normalized tag table
		query = query.Joins("JOIN contact_tags ON contact_tags.contact_id = contacts.id").
			Where("contact_tags.tag = ? AND contact_tags.deleted_at IS NULL", tag)
	}

	var total int64
	query.Count(&total)

	var contacts []models.Contact
	if err := query.Preload("Tags").Offset(offset).Limit(limit).Find(&contacts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contacts", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  contacts,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetContact returns a single contact by ID
func (cc *ContactController) GetContact(c *fiber.Ctx) error {
	var contact models.Contact
	if err := cc.DB.Preload("Tags").First(&contact, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	return c.JSON(utils.SuccessResponse(contact))
}

// UpdateContact updates contact details; empty fields are left alone
func (cc *ContactController) UpdateContact(c *fiber.Ctx) error {
	var input struct {
		FirstName string   `json:"first_name" validate:"omitempty,max=100"`
		LastName  string   `json:"last_name" validate:"omitempty,max=100"`
		Company   string   `json:"company" validate:"omitempty,max=200"`
		Title     string   `json:"title" validate:"omitempty,max=200"`
		Source    string   `json:"source" validate:"omitempty,max=100"`
		Tags      []string `json:"tags"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var contact models.Contact
	if err := cc.DB.Preload("Tags").First(&contact, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	contact.Merge(input.FirstName, input.LastName, input.Company, input.Title, input.Source)
	if err := cc.DB.Save(&contact).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update contact", err)
	}

	for _, tag := range input.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || contact.HasTag(tag) {
			continue
		}
		ct := models.ContactTag{ContactID: contact.ID, Tag: tag}
		if err := cc.DB.Create(&ct).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to add tag", err)
		}
		contact.Tags = append(contact.Tags, ct)
	}

	return c.JSON(utils.SuccessResponse(contact))
}

// csvHeaderAliases maps normalized CSV header names onto contact fields
var csvHeaderAliases = map[string]string{
	"email":         "email",
	"email_address": "email",
	"first_name":    "first_name",
	"firstname":     "first_name",
	"first":         "first_name",
	"last_name":     "last_name",
	"lastname":      "last_name",
	"last":          "last_name",
	"company":       "company",
	"organization":  "company",
	"title":         "title",
	"position":      "title",
	"job_title":     "title",
	"tags":          "tags",
	"source":        "source",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return csvHeaderAliases[h]
}

// ImportContacts imports contacts from an uploaded CSV file. Headers are
// matched case-insensitively, rows without an email are skipped, and rows
// matching an existing contact merge-update it.
func (cc *ContactController) ImportContacts(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}

	if file.Size > 5<<20 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File too large (max 5MB)", nil)
	}

	src, err := file.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to open file", err)
	}
	defer src.Close()

	reader := csv.NewReader(src)
	records, err := reader.ReadAll()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse CSV file", err)
	}

	if len(records) < 2 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "CSV file must have at least a header and one row", nil)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = normalizeHeader(h)
	}

	imported, updated, skipped := 0, 0, 0
	for _, row := range records[1:] {
		if len(row) != len(header) {
			skipped++
			continue
		}

		fields := make(map[string]string)
		for i, col := range header {
			if col != "" {
				fields[col] = strings.TrimSpace(row[i])
			}
		}

		if fields["email"] == "" {
			skipped++
			continue
		}
		if err := utils.ValidateEmailFormat(fields["email"]); err != nil {
			skipped++
			continue
		}

		source := fields["source"]
		if source == "" {
			source = "csv"
		}

		var tags []string
		if fields["tags"] != "" {
			tags = strings.Split(fields["tags"], ",")
		}

		_, created, err := cc.upsertContact(
			fields["email"], fields["first_name"], fields["last_name"],
			fields["company"], fields["title"], source, tags)
		if err != nil {
			cc.Logger.Printf("Failed to import row for %s: %v", fields["email"], err)
			skipped++
			continue
		}
		if created {
			imported++
		} else {
			updated++
		}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"imported": imported,
		"updated":  updated,
		"skipped":  skipped,
	}))
}
