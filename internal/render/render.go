// Package render turns a step's body template into the outbound message
// text. The templating language itself is a black-box contract; this
// implementation uses Go templates over a fixed contact context.
package render

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/campaignkit/drip-engine/internal/domain"
)

// Context is the fixed set of fields a step template may reference.
type Context struct {
	FirstName string
	LastName  string
	Phone     string
}

// Renderer renders a step body against a contact.
type Renderer interface {
	Render(body string, contact *domain.Contact) (string, error)
}

var _ Renderer = (*TemplateRenderer)(nil)

// TemplateRenderer renders with text/template. A reference to a field
// outside Context is a template error, surfaced to the caller instead of
// sending a message with a raw placeholder in it.
type TemplateRenderer struct{}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

func (r *TemplateRenderer) Render(body string, contact *domain.Contact) (string, error) {
	if contact == nil {
		return "", fmt.Errorf("%w: contact is required", domain.ErrValidation)
	}

	tmpl, err := template.New("step").Option("missingkey=error").Parse(body)
	if err != nil {
		return "", fmt.Errorf("%w: malformed step template: %v", domain.ErrValidation, err)
	}

	var sb strings.Builder
	err = tmpl.Execute(&sb, Context{
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Phone:     contact.Phone,
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to render step template: %v", domain.ErrValidation, err)
	}

	rendered := strings.TrimSpace(sb.String())
	if rendered == "" {
		return "", fmt.Errorf("%w: rendered step body is empty", domain.ErrValidation)
	}

	return rendered, nil
}
