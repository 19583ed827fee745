package main

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"time"
	"unicode/utf8"
)

const dateLayout = "2006-01-02"

type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindDate
)

// Rule describes the constraints on a single input field.
type Rule struct {
	Required    bool
	Kind        FieldKind
	MaxLen      int
	MinLen      int
	Email       bool
	NonNegative bool
	NoFuture    bool
}

type RuleSet map[string]Rule

// Errors collects validation messages per field.
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e Errors) Any() bool {
	return len(e) > 0
}

var expenseRules = RuleSet{
	"description": {Required: true, Kind: KindString, MaxLen: 191},
	"date":        {Required: true, Kind: KindDate, NoFuture: true},
	"value":       {Required: true, Kind: KindNumber, NonNegative: true},
}

var registerRules = RuleSet{
	"name":     {Required: true, Kind: KindString, MaxLen: 191},
	"email":    {Required: true, Kind: KindString, MaxLen: 191, Email: true},
	"password": {Required: true, Kind: KindString, MinLen: 8},
}

var loginRules = RuleSet{
	"email":    {Required: true, Kind: KindString},
	"password": {Required: true, Kind: KindString},
}

// Validate checks payload against rules and returns the collected field
// errors. It never touches storage; cross-record checks such as email
// uniqueness are appended by the caller.
func Validate(payload map[string]any, rules RuleSet) Errors {
	errs := Errors{}

	for field, rule := range rules {
		raw, present := payload[field]
		if !present || raw == nil {
			if rule.Required {
				errs.Add(field, fmt.Sprintf("The %s field is required.", field))
			}
			continue
		}

		switch rule.Kind {
		case KindString:
			validateString(errs, field, rule, raw)
		case KindNumber:
			validateNumber(errs, field, rule, raw)
		case KindDate:
			validateDate(errs, field, rule, raw)
		}
	}

	return errs
}

func validateString(errs Errors, field string, rule Rule, raw any) {
	s, ok := raw.(string)
	if !ok {
		errs.Add(field, fmt.Sprintf("The %s must be a string.", field))
		return
	}
	if rule.Required && s == "" {
		errs.Add(field, fmt.Sprintf("The %s field is required.", field))
		return
	}
	if rule.MaxLen > 0 && utf8.RuneCountInString(s) > rule.MaxLen {
		errs.Add(field, fmt.Sprintf("The %s may not be greater than %d characters.", field, rule.MaxLen))
	}
	if rule.MinLen > 0 && utf8.RuneCountInString(s) < rule.MinLen {
		errs.Add(field, fmt.Sprintf("The %s must be at least %d characters.", field, rule.MinLen))
	}
	if rule.Email {
		if _, err := mail.ParseAddress(s); err != nil {
			errs.Add(field, fmt.Sprintf("The %s must be a valid email address.", field))
		}
	}
}

func validateNumber(errs Errors, field string, rule Rule, raw any) {
	var v float64
	switch n := raw.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			errs.Add(field, fmt.Sprintf("The %s must be a number.", field))
			return
		}
		v = f
	case float64:
		v = n
	default:
		errs.Add(field, fmt.Sprintf("The %s must be a number.", field))
		return
	}

	if rule.NonNegative && v < 0 {
		errs.Add(field, fmt.Sprintf("The %s must be at least 0.", field))
	}
}

func validateDate(errs Errors, field string, rule Rule, raw any) {
	s, ok := raw.(string)
	if !ok {
		errs.Add(field, fmt.Sprintf("The %s is not a valid date.", field))
		return
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		errs.Add(field, fmt.Sprintf("The %s is not a valid date.", field))
		return
	}
	if rule.NoFuture && d.After(today()) {
		errs.Add(field, fmt.Sprintf("The %s must be a date before or equal to today.", field))
	}
}

// today is the current server-local calendar date, parsed the same way date
// inputs are so the no-future check compares dates only.
func today() time.Time {
	d, _ := time.Parse(dateLayout, time.Now().Format(dateLayout))
	return d
}
