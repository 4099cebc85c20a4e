package goVerify

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

const maxEmailLength = 254

var emailPattern = regexp.MustCompile(
	"^[A-Za-z0-9.!#$%&'*+/=?^_`{|}~-]+@" +
		`[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?` +
		`(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*` +
		`\.[A-Za-z]{2,}$`,
)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// DispatchRouter classifies identities and renders message copy. It is
// immutable after construction and safe for concurrent use.
type DispatchRouter struct {
	phone       *regexp.Regexp
	templates   map[MessageType]compiledTemplate
	expiry      map[MessageType]int
	defaultType MessageType
}

type compiledTemplate struct {
	subject *template.Template
	body    *template.Template
}

type templateData struct {
	Code    string
	Minutes int
}

// NewDispatchRouter compiles the phone pattern and message templates of cfg.
func NewDispatchRouter(cfg VerificationConfig) (*DispatchRouter, error) {
	phone, err := regexp.Compile(cfg.PhonePattern)
	if err != nil {
		return nil, fmt.Errorf("phone pattern: %w", err)
	}

	r := &DispatchRouter{
		phone:       phone,
		templates:   make(map[MessageType]compiledTemplate, len(cfg.Templates)),
		expiry:      make(map[MessageType]int, len(cfg.ExpiryMinutesByMessageType)),
		defaultType: cfg.DefaultMessageType,
	}
	for mt, minutes := range cfg.ExpiryMinutesByMessageType {
		r.expiry[mt] = minutes
	}
	for mt, src := range cfg.Templates {
		subject, err := template.New(string(mt) + ".subject").Option("missingkey=error").Parse(src.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %q subject: %w", mt, err)
		}
		body, err := template.New(string(mt) + ".body").Option("missingkey=error").Parse(src.Body)
		if err != nil {
			return nil, fmt.Errorf("template %q body: %w", mt, err)
		}
		r.templates[mt] = compiledTemplate{subject: subject, body: body}
	}
	if _, ok := r.templates[r.defaultType]; !ok {
		return nil, fmt.Errorf("no template for default message type %q", r.defaultType)
	}
	if _, ok := r.expiry[r.defaultType]; !ok {
		return nil, fmt.Errorf("no expiry for default message type %q", r.defaultType)
	}
	return r, nil
}

// Classify decides whether identity is an email address, a phone number, or
// neither. Only the format is checked. Email domains are lowercased and phone
// separators (spaces, dashes, parentheses) are stripped from Address.
func (r *DispatchRouter) Classify(identity string) Destination {
	id := strings.TrimSpace(identity)
	if id == "" {
		return Destination{Kind: DestinationInvalid}
	}

	if strings.Contains(id, "@") {
		if len(id) > maxEmailLength || !emailPattern.MatchString(id) {
			return Destination{Kind: DestinationInvalid}
		}
		at := strings.LastIndexByte(id, '@')
		return Destination{
			Kind:    DestinationEmail,
			Address: id[:at] + "@" + strings.ToLower(id[at+1:]),
		}
	}

	if r.phone.MatchString(id) {
		return Destination{
			Kind:    DestinationPhone,
			Address: phoneSeparators.Replace(id),
		}
	}

	return Destination{Kind: DestinationInvalid}
}

// ResolveMessageType maps an empty or unknown message type to the default.
func (r *DispatchRouter) ResolveMessageType(mt MessageType) MessageType {
	if _, ok := r.templates[mt]; ok {
		if _, ok := r.expiry[mt]; ok {
			return mt
		}
	}
	return r.defaultType
}

// EffectiveMinutes is the code lifetime for mt.
func (r *DispatchRouter) EffectiveMinutes(mt MessageType) int {
	return r.expiry[r.ResolveMessageType(mt)]
}

// SelectTemplate renders the subject and body for mt. Channel and
// Destination are left for the caller.
func (r *DispatchRouter) SelectTemplate(mt MessageType, code string, effectiveMinutes int) (Message, error) {
	tpl := r.templates[r.ResolveMessageType(mt)]
	data := templateData{Code: code, Minutes: effectiveMinutes}

	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}
	return Message{
		Subject: subject.String(),
		Body:    body.String(),
	}, nil
}
