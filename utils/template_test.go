package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/funcdude/crm-webhook/models"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		contact  models.Contact
		expected string
	}{
		{
			name:     "all fields present",
			template: "Hi {first_name} {last_name} at {company}",
			contact:  models.Contact{FirstName: "Ada", LastName: "Lovelace", Company: "Analytical Engines"},
			expected: "Hi Ada Lovelace at Analytical Engines",
		},
		{
			name:     "missing first name falls back to there",
			template: "Hi {first_name} from {company}",
			contact:  models.Contact{Company: "Acme"},
			expected: "Hi there from Acme",
		},
		{
			name:     "missing company falls back to your company",
			template: "How is {company} doing?",
			contact:  models.Contact{FirstName: "Ada"},
			expected: "How is your company doing?",
		},
		{
			name:     "missing last name and title render empty",
			template: "Dear {first_name} {last_name}, {title}",
			contact:  models.Contact{FirstName: "Ada"},
			expected: "Dear Ada , ",
		},
		{
			name:     "email placeholder",
			template: "Sent to {email}",
			contact:  models.Contact{Email: "ada@example.com"},
			expected: "Sent to ada@example.com",
		},
		{
			name:     "unrecognized placeholder passes through",
			template: "Hi {first_name}, your {discount_code} awaits",
			contact:  models.Contact{FirstName: "Ada"},
			expected: "Hi Ada, your {discount_code} awaits",
		},
		{
			name:     "no placeholders",
			template: "Plain text body",
			contact:  models.Contact{FirstName: "Ada"},
			expected: "Plain text body",
		},
		{
			name:     "repeated placeholder",
			template: "{first_name} {first_name}",
			contact:  models.Contact{FirstName: "Ada"},
			expected: "Ada Ada",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RenderTemplate(tt.template, &tt.contact))
		})
	}
}
