package prompts

import (
	"embed"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/randomtoy/oraculum/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// PersonaTemplate is the system prompt rendered for every stage.
const PersonaTemplate = "system_persona"

// Store holds the parsed stage templates. All templates are parsed once at
// construction; lookups and rendering are safe for concurrent use by any
// number of sessions.
type Store struct {
	templates map[string]*template.Template
}

func NewStore() (*Store, error) {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}

	templates := make(map[string]*template.Template, len(entries))
	for _, entry := range entries {
		raw, err := templateFS.ReadFile(path.Join("templates", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		// missingkey=error turns a missing placeholder into a render
		// failure instead of "<no value>" leaking into a prompt.
		t, err := template.New(name).Option("missingkey=error").Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		templates[name] = t
	}

	return &Store{templates: templates}, nil
}

// Get returns the template registered under name.
func (s *Store) Get(name string) (*template.Template, error) {
	t, ok := s.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStageNotFound, name)
	}
	return t, nil
}

// Render executes a template against the given placeholder map. A missing
// required placeholder fails the render.
func (s *Store) Render(name string, data map[string]any) (string, error) {
	t, err := s.Get(name)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return b.String(), nil
}

// Names lists the registered template names, for diagnostics.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	return names
}
