package channel

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"time"

	"freshshare/internal/domain"
)

// Template names understood by Templates.
const (
	TmplEmailSubject = "email_subject"
	TmplEmailBody    = "email_body"
	TmplSMS          = "sms"
	TmplPushTitle    = "push_title"
	TmplPushBody     = "push_body"
)

var defaultTemplates = map[string]string{
	TmplEmailSubject: `New food available nearby: {{.Event.Title}}`,
	TmplEmailBody: `Hello {{.Recipient.Name}},

A new food listing is available near you!

Title: {{.Event.Title}}
Quantity: {{qty .Event.Quantity}} {{.Event.Unit}}
Location: {{.Event.Pickup.Address}}
Available until: {{when .Event.ExpiresAt}}

Log in to Fresh-Share to claim this food before it expires.

Best regards,
Fresh-Share Team
`,
	TmplSMS:       `Fresh-Share: {{.Event.Title}} available nearby! {{qty .Event.Quantity}} {{.Event.Unit}}. Claim now before {{when .Event.ExpiresAt}}`,
	TmplPushTitle: `New Food Available Nearby!`,
	TmplPushBody:  `{{.Event.Title}} - {{qty .Event.Quantity}} {{.Event.Unit}}`,
}

var funcs = template.FuncMap{
	"qty": func(q float64) string { return strconv.FormatFloat(q, 'f', -1, 64) },
	"when": func(t time.Time) string {
		if t.IsZero() {
			return "unspecified"
		}
		return t.UTC().Format("2006-01-02 15:04 MST")
	},
}

// Message is the data a template renders against.
type Message struct {
	Event     domain.Event
	Recipient domain.Recipient
}

// Templates holds the compiled message templates shared by all channels.
type Templates struct {
	mu    sync.RWMutex
	tmpls map[string]*template.Template
}

// NewTemplates compiles the built-in templates and applies overrides on top.
func NewTemplates(overrides map[string]string) (*Templates, error) {
	t := &Templates{tmpls: make(map[string]*template.Template, len(defaultTemplates))}
	for name, body := range defaultTemplates {
		if err := t.Register(name, body); err != nil {
			return nil, err
		}
	}
	for name, body := range overrides {
		if _, ok := defaultTemplates[name]; !ok {
			return nil, fmt.Errorf("unknown template %q", name)
		}
		if strings.TrimSpace(body) == "" {
			continue
		}
		if err := t.Register(name, body); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Templates) Register(name, body string) error {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(body)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", name, err)
	}
	t.mu.Lock()
	t.tmpls[name] = tmpl
	t.mu.Unlock()
	return nil
}

func (t *Templates) Render(name string, m Message) (string, error) {
	t.mu.RLock()
	tmpl, ok := t.tmpls[name]
	t.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, m); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return out.String(), nil
}

var (
	defaultOnce sync.Once
	defaultSet  *Templates
)

// DefaultTemplates returns the shared built-in template set.
func DefaultTemplates() *Templates {
	defaultOnce.Do(func() {
		t, err := NewTemplates(nil)
		if err != nil {
			panic(err)
		}
		defaultSet = t
	})
	return defaultSet
}
