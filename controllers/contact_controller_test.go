package controller

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/funcdude/crm-webhook/models"
)

func newContactApp(db *gorm.DB) *fiber.App {
	app := fiber.New()
	cc := NewContactController(db, discardLogger())
	app.Post("/contacts", cc.CreateContact)
	app.Get("/contacts", cc.GetContacts)
	app.Get("/contacts/:id", cc.GetContact)
	app.Put("/contacts/:id", cc.UpdateContact)
	app.Post("/contacts/import", cc.ImportContacts)
	return app
}

func TestCreateContact(t *testing.T) {
	db := newTestDB(t)
	app := newContactApp(db)

	resp := doJSON(t, app, "POST", "/contacts", fiber.Map{
		"email":      "Ada@Example.COM",
		"first_name": "Ada",
		"company":    "Acme",
		"tags":       []string{"vip", "beta"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	data := dataOf(t, decodeBody(t, resp))
	assert.Equal(t, "ada@example.com", data["email"], "email is normalized")
	assert.Equal(t, "Ada", data["first_name"])
	assert.Equal(t, "manual", data["source"])

	var count int64
	db.Model(&models.ContactTag{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestCreateContact_InvalidEmail(t *testing.T) {
	db := newTestDB(t)
	app := newContactApp(db)

	resp := doJSON(t, app, "POST", "/contacts", fiber.Map{"email": "not-an-email"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/contacts", fiber.Map{"first_name": "NoEmail"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateContact_UpsertMergesWithoutClobbering(t *testing.T) {
	db := newTestDB(t)
	app := newContactApp(db)

	resp := doJSON(t, app, "POST", "/contacts", fiber.Map{
		"email":      "ada@example.com",
		"first_name": "Ada",
		"title":      "Engineer",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Same email again: filled fields update, empty ones are left alone
	resp = doJSON(t, app, "POST", "/contacts", fiber.Map{
		"email":   "ADA@example.com",
		"company": "Acme",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, "existing contact is updated, not created")

	var contact models.Contact
	require.NoError(t, db.Where("email = ?", "ada@example.com").First(&contact).Error)
	assert.Equal(t, "Ada", contact.FirstName, "existing value survives an empty incoming field")
	assert.Equal(t, "Engineer", contact.Title)
	assert.Equal(t, "Acme", contact.Company)

	var count int64
	db.Model(&models.Contact{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateContact_DuplicateTagsNotAdded(t *testing.T) {
	db := newTestDB(t)
	app := newContactApp(db)

	doJSON(t, app, "POST", "/contacts", fiber.Map{"email": "a@example.com", "tags": []string{"vip"}})
	doJSON(t, app, "POST", "/contacts", fiber.Map{"email": "a@example.com", "tags": []string{"vip", " vip ", "new"}})

	var tags []models.ContactTag
	require.NoError(t, db.Find(&tags).Error)
	assert.Len(t, tags, 2)
}

func TestGetContacts_FilterByTag(t *testing.T) {
	db := newTestDB(t)
	app := newContactApp(db)

	vip := seedContact(t, db, "vip@example.com")
	require.NoError(t, db.Create(&models.ContactTag{ContactID: vip.ID, Tag: "vip"}).Error)
	seedContact(t, db, "plain@example.com")

	resp := doJSON(t, app, "GET", "/contacts?tag=vip", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["total"])
	contacts := body["data"].([]interface{})
	require.Len(t, contacts, 1)
	assert.Equal(t, "vip@example.com", contacts[0].(map[string]interface{})["email"])

	// Tag filtering is exact, not substring
	resp = doJSON(t, app, "GET", "/contacts?tag=vi", nil)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(0), body["total"])
}

func TestGetContact_NotFound(t *testing.T) {
	db := newTestDB(t)
	app := newContactApp(db)

	resp := doJSON(t, app, "GET", "/contacts/999", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUpdateContact_EmptyFieldsLeftAlone(t *testing.T) {
	db := newTestDB(t)
	app := newContactApp(db)

	contact := models.Contact{Email: "ada@example.com", FirstName: "Ada", Company: "Acme", Source: "manual"}
	require.NoError(t, db.Create(&contact).Error)

	resp := doJSON(t, app, "PUT", "/contacts/1", fiber.Map{"title": "CTO"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var reloaded models.Contact
	require.NoError(t, db.First(&reloaded, contact.ID).Error)
	assert.Equal(t, "Ada", reloaded.FirstName)
	assert.Equal(t, "Acme", reloaded.Company)
	assert.Equal(t, "CTO", reloaded.Title)
}

func importCSV(t *testing.T, app *fiber.App, csv string) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "contacts.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/contacts/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return dataOf(t, decodeBody(t, resp))
}

func TestImportContacts(t *testing.T) {
	db := newTestDB(t)
	app := newContactApp(db)

	// Headers use mixed case and aliases
	result := importCSV(t, app, ""+
		"Email Address,FirstName,Organization,Tags\n"+
		"ada@example.com,Ada,Acme,\"vip,beta\"\n"+
		"bob@example.com,Bob,,\n"+
		",NoEmail,,\n"+
		"broken-email,Who,,\n")

	assert.Equal(t, float64(2), result["imported"])
	assert.Equal(t, float64(0), result["updated"])
	assert.Equal(t, float64(2), result["skipped"])

	var ada models.Contact
	require.NoError(t, db.Preload("Tags").Where("email = ?", "ada@example.com").First(&ada).Error)
	assert.Equal(t, "Ada", ada.FirstName)
	assert.Equal(t, "Acme", ada.Company)
	assert.Equal(t, "csv", ada.Source)
	assert.Len(t, ada.Tags, 2)
}

func TestImportContacts_UpdatesExisting(t *testing.T) {
	db := newTestDB(t)
	app := newContactApp(db)

	contact := models.Contact{Email: "ada@example.com", FirstName: "Ada", Source: "manual"}
	require.NoError(t, db.Create(&contact).Error)

	result := importCSV(t, app, "email,company\nada@example.com,Acme\n")
	assert.Equal(t, float64(0), result["imported"])
	assert.Equal(t, float64(1), result["updated"])

	var reloaded models.Contact
	require.NoError(t, db.First(&reloaded, contact.ID).Error)
	assert.Equal(t, "Ada", reloaded.FirstName, "import merge keeps existing fields")
	assert.Equal(t, "Acme", reloaded.Company)
	assert.Equal(t, "csv", reloaded.Source)
}

func TestImportContacts_HeaderOnly(t *testing.T) {
	db := newTestDB(t)
	app := newContactApp(db)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "contacts.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("email,first_name\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/contacts/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
