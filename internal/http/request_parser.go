// Package http provides HTTP server and handler implementations.
//
// This file turns request bodies, JSON or form encoded, into engine inputs.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bilans/internal/balance"
	"bilans/internal/core"
)

// maxBodyBytes bounds what a ledger form can reasonably send.
const maxBodyBytes = 64 << 10

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetAll returns every value of a list field: a JSON array, repeated form
// keys, or a single comma separated value. Blank entries are dropped.
func (p *RequestBodyParser) GetAll(key string) []string {
	var raw []string
	switch {
	case p.jsonData != nil:
		switch v := p.jsonData[key].(type) {
		case []any:
			for _, item := range v {
				raw = append(raw, stringValue(item))
			}
		case nil:
		default:
			raw = strings.Split(stringValue(v), ",")
		}
	case p.formData != nil:
		values := p.formData[key]
		if len(values) == 0 {
			values = p.formData[key+"[]"]
		}
		if len(values) == 1 {
			values = strings.Split(values[0], ",")
		}
		raw = values
	}

	var out []string
	for _, s := range raw {
		if s = sanitizeInput(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// parseExpense reads payer, amount, participants, notes and an optional
// timestamp. A missing participants field means the whole group.
func parseExpense(g core.Group, p *RequestBodyParser) (balance.Expense, error) {
	payer, err := lookupParticipant(g, "payer", p.Get("payer"))
	if err != nil {
		return balance.Expense{}, err
	}
	amount, err := parseAmount(p.Get("amount"))
	if err != nil {
		return balance.Expense{}, err
	}

	names := p.GetAll("participants")
	if !p.has("participants") {
		names = nil
		for _, m := range g.Members() {
			names = append(names, string(m))
		}
	}
	participants := make([]core.Participant, 0, len(names))
	for _, n := range names {
		pp, err := lookupParticipant(g, "participant", n)
		if err != nil {
			return balance.Expense{}, err
		}
		participants = append(participants, pp)
	}

	ts, err := parseTimestamp(p.Get("timestamp"))
	if err != nil {
		return balance.Expense{}, err
	}

	return balance.Expense{
		Payer:        payer,
		Amount:       amount,
		Participants: participants,
		Notes:        p.Get("notes"),
		Timestamp:    ts,
	}, nil
}

// parseSettlement reads payer, receiver and amount.
func parseSettlement(g core.Group, p *RequestBodyParser) (balance.Settlement, error) {
	payer, err := lookupParticipant(g, "payer", p.Get("payer"))
	if err != nil {
		return balance.Settlement{}, err
	}
	receiver, err := lookupParticipant(g, "receiver", p.Get("receiver"))
	if err != nil {
		return balance.Settlement{}, err
	}
	amount, err := parseAmount(p.Get("amount"))
	if err != nil {
		return balance.Settlement{}, err
	}
	return balance.Settlement{Payer: payer, Receiver: receiver, Amount: amount}, nil
}

// has reports whether the field was sent at all, even empty.
func (p *RequestBodyParser) has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		_, okList := p.formData[key+"[]"]
		return ok || okList
	}
	return false
}

func lookupParticipant(g core.Group, field, name string) (core.Participant, error) {
	if name == "" {
		return "", fmt.Errorf("%w: %s is required", core.ErrInvalidInput, field)
	}
	p, ok := g.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s %q", core.ErrUnknownParticipant, field, name)
	}
	return p, nil
}

func parseAmount(s string) (core.Money, error) {
	m, err := core.ParseMoney(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w %q", err, s)
	}
	return m, nil
}

// parseTimestamp accepts RFC 3339 or a bare date; empty means now.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", core.ErrInvalidInput, s)
}
