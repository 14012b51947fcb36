package prank

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultMessage  = "I KNEW YOU'D SAY YES!"
	DefaultQuestion = "Will you be my Valentine, %s?"
	fallbackName    = "cutie"
)

// Query keys of a shareable link.
const (
	keyRecipient = "to"
	keyMessage   = "msg"
	keyQuestion  = "q"
	keySession   = "sid"
)

// Params are the values a shared link carries.
type Params struct {
	Recipient string
	Message   string
	Question  string
	SessionID string
}

// ParseLink reads Params from a full URL or a bare query string. Missing
// message and question fall back to the defaults.
func ParseLink(raw string) (Params, error) {
	raw = strings.TrimSpace(raw)
	query := raw
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		query = raw[i+1:]
	}
	if i := strings.IndexByte(query, '#'); i >= 0 {
		query = query[:i]
	}
	vals, err := url.ParseQuery(query)
	if err != nil {
		return Params{}, errors.Wrap(err, "parse link")
	}
	p := Params{
		Recipient: strings.TrimSpace(vals.Get(keyRecipient)),
		Message:   strings.TrimSpace(vals.Get(keyMessage)),
		Question:  strings.TrimSpace(vals.Get(keyQuestion)),
		SessionID: strings.TrimSpace(vals.Get(keySession)),
	}
	return p.withDefaults(), nil
}

func (p Params) withDefaults() Params {
	if p.Message == "" {
		p.Message = DefaultMessage
	}
	if p.Question == "" {
		p.Question = DefaultQuestion
	}
	return p
}

// Link builds the shareable URL for p on top of base.
func (p Params) Link(base string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		u = &url.URL{}
	}
	vals := url.Values{}
	vals.Set(keyRecipient, p.Recipient)
	if p.Message != "" && p.Message != DefaultMessage {
		vals.Set(keyMessage, p.Message)
	}
	if p.Question != "" && p.Question != DefaultQuestion {
		vals.Set(keyQuestion, p.Question)
	}
	if p.SessionID != "" {
		vals.Set(keySession, p.SessionID)
	}
	u.RawQuery = vals.Encode()
	return u.String()
}

// Prompt renders the question for the recipient. A question without a %s
// verb is used as is.
func (p Params) Prompt() string {
	q := p.Question
	if q == "" {
		q = DefaultQuestion
	}
	name := p.Recipient
	if name == "" {
		name = fallbackName
	}
	if strings.Count(q, "%s") != 1 || strings.Contains(strings.ReplaceAll(q, "%s", ""), "%") {
		return q
	}
	return fmt.Sprintf(q, name)
}

// Name is the recipient or a fallback for display.
func (p Params) Name() string {
	if p.Recipient == "" {
		return fallbackName
	}
	return p.Recipient
}
