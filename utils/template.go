package utils

import (
	"strings"

	"github.com/funcdude/crm-webhook/models"
)

// Placeholder defaults used when the contact field is empty
var placeholderDefaults = map[string]string{
	"{first_name}": "there",
	"{company}":    "your company",
	"{last_name}":  "",
	"{email}":      "",
	"{title}":      "",
}

// RenderTemplate substitutes the recognized placeholders with the
// contact's field values. Empty fields fall back to their defaults.
// Unrecognized placeholders pass through unchanged.
func RenderTemplate(tmpl string, contact *models.Contact) string {
	values := map[string]string{
		"{first_name}": contact.FirstName,
		"{last_name}":  contact.LastName,
		"{company}":    contact.Company,
		"{email}":      contact.Email,
		"{title}":      contact.Title,
	}

	out := tmpl
	for token, value := range values {
		if value == "" {
			value = placeholderDefaults[token]
		}
		out = strings.ReplaceAll(out, token, value)
	}
	return out
}
