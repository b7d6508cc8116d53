package render

import (
	"errors"
	"testing"

	"github.com/campaignkit/drip-engine/internal/domain"
)

func TestRenderSubstitutesContactFields(t *testing.T) {
	t.Parallel()

	r := NewTemplateRenderer()
	contact := &domain.Contact{FirstName: "Ada", LastName: "Lovelace", Phone: "+15551234567"}

	got, err := r.Render("Hi {{.FirstName}} {{.LastName}}, confirm at {{.Phone}}", contact)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "Hi Ada Lovelace, confirm at +15551234567" {
		t.Fatalf("rendered = %q", got)
	}
}

func TestRenderPlainTextPassesThrough(t *testing.T) {
	t.Parallel()

	r := NewTemplateRenderer()
	got, err := r.Render("No placeholders here.", &domain.Contact{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "No placeholders here." {
		t.Fatalf("rendered = %q", got)
	}
}

func TestRenderUnknownFieldFails(t *testing.T) {
	t.Parallel()

	r := NewTemplateRenderer()
	_, err := r.Render("Hi {{.Nickname}}", &domain.Contact{FirstName: "Ada"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want validation error for unknown field", err)
	}
}

func TestRenderMalformedTemplateFails(t *testing.T) {
	t.Parallel()

	r := NewTemplateRenderer()
	_, err := r.Render("Hi {{.FirstName", &domain.Contact{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want validation error for malformed template", err)
	}
}

func TestRenderEmptyResultFails(t *testing.T) {
	t.Parallel()

	r := NewTemplateRenderer()
	_, err := r.Render("{{.FirstName}}", &domain.Contact{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want validation error for empty render", err)
	}
}

func TestRenderNilContactFails(t *testing.T) {
	t.Parallel()

	r := NewTemplateRenderer()
	if _, err := r.Render("hi", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
}
