package notifx

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	"sync"
	texttemplate "text/template"
)

type compiled struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// TemplateRegistry stores named email templates.
type TemplateRegistry struct {
	templates map[string]compiled
	mu        sync.RWMutex
}

func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{templates: make(map[string]compiled)}
}

// Register parses t and stores it under name. Text and HTML are optional but
// at least one must be set.
func (r *TemplateRegistry) Register(name string, t EmailTemplate) error {
	if strings.TrimSpace(t.Subject) == "" || (t.Text == "" && t.HTML == "") {
		return notifxErrors.New(ErrTemplateParse).
			WithDetail("template", name).
			WithDetail("reason", "subject and a body are required")
	}

	var c compiled
	var err error
	if c.subject, err = texttemplate.New(name + ".subject").Option("missingkey=error").Parse(t.Subject); err != nil {
		return notifxErrors.NewWithCause(ErrTemplateParse, err).WithDetail("template", name)
	}
	if t.Text != "" {
		if c.text, err = texttemplate.New(name + ".text").Option("missingkey=error").Parse(t.Text); err != nil {
			return notifxErrors.NewWithCause(ErrTemplateParse, err).WithDetail("template", name)
		}
	}
	if t.HTML != "" {
		if c.html, err = htmltemplate.New(name + ".html").Option("missingkey=error").Parse(t.HTML); err != nil {
			return notifxErrors.NewWithCause(ErrTemplateParse, err).WithDetail("template", name)
		}
	}

	r.mu.Lock()
	r.templates[name] = c
	r.mu.Unlock()
	return nil
}

// Render executes the named template with data.
func (r *TemplateRegistry) Render(name string, data any) (*Rendered, error) {
	r.mu.RLock()
	c, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return nil, notifxErrors.New(ErrTemplateNotFound).WithDetail("template", name)
	}

	var out Rendered
	var buf bytes.Buffer
	if err := c.subject.Execute(&buf, data); err != nil {
		return nil, notifxErrors.NewWithCause(ErrTemplateRender, err).WithDetail("template", name)
	}
	out.Subject = strings.TrimSpace(buf.String())

	if c.text != nil {
		buf.Reset()
		if err := c.text.Execute(&buf, data); err != nil {
			return nil, notifxErrors.NewWithCause(ErrTemplateRender, err).WithDetail("template", name)
		}
		out.TextBody = buf.String()
	}
	if c.html != nil {
		buf.Reset()
		if err := c.html.Execute(&buf, data); err != nil {
			return nil, notifxErrors.NewWithCause(ErrTemplateRender, err).WithDetail("template", name)
		}
		out.HTMLBody = buf.String()
	}
	return &out, nil
}
