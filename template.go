package delivery

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Template is a reusable message body. The content may contain {name}-style
// placeholders that Render fills in from per-send parameters.
type Template struct {
	Uuid uuid.UUID `json:"uuid"`

	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Content  string `json:"content"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (t *Template) Validate() error {
	if t.Name == "" {
		return ValidationError{Field: "name", Reason: "must not be empty"}
	}

	if t.Content == "" {
		return ValidationError{Field: "content", Reason: "must not be empty"}
	}

	return nil
}

// Render substitutes {key} placeholders in the content. Placeholders without
// a matching parameter are left in place, a missing value shows up in the
// delivered message instead of being silently blanked.
func (t *Template) Render(parameters map[string]string) string {
	if len(parameters) == 0 {
		return t.Content
	}

	pairs := make([]string, 0, len(parameters)*2)
	for key, value := range parameters {
		pairs = append(pairs, "{"+key+"}", value)
	}

	return strings.NewReplacer(pairs...).Replace(t.Content)
}

// NewMemoryTemplates returns an in-memory TemplateRepository. It is the
// default template store when no persistent repository is configured.
func NewMemoryTemplates() TemplateRepository {
	return &memoryTemplates{
		templates: map[uuid.UUID]Template{},
	}
}

type memoryTemplates struct {
	mu sync.Mutex

	templates map[uuid.UUID]Template
}

func (r *memoryTemplates) Get(id uuid.UUID) (Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	template, ok := r.templates[id]
	if !ok {
		return Template{}, TemplateNotFoundErr
	}

	return template, nil
}

func (r *memoryTemplates) GetAll() ([]Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	templates := make([]Template, 0, len(r.templates))
	for _, template := range r.templates {
		templates = append(templates, template)
	}

	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})

	return templates, nil
}

func (r *memoryTemplates) Create(template *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates[template.Uuid] = *template

	return nil
}

func (r *memoryTemplates) Update(template *Template) error {
	return r.Create(template)
}

func (r *memoryTemplates) Delete(template *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.templates, template.Uuid)

	return nil
}
