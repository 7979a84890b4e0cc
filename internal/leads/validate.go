package leads

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// ErrConsentRequired is wrapped by the ValidationError for a missing privacy
// consent, which the form reports separately from field errors.
var ErrConsentRequired = errors.New("privacy consent required")

// ValidationError describes the first invalid field of a submission.
type ValidationError struct {
	Field  string
	Reason string
	err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.err }

// Field length caps, in runes.
const (
	maxNameLen  = 100
	maxPhoneLen = 30
	maxEmailLen = 254
)

func required(field, v string, maxLen int) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: field, Reason: "required"}
	}
	if utf8.RuneCountInString(v) > maxLen {
		return &ValidationError{Field: field, Reason: "too long"}
	}
	return nil
}

func validEmail(v string) error {
	if err := required("email", v, maxEmailLen); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(v))
	if err != nil || addr.Name != "" {
		return &ValidationError{Field: "email", Reason: "invalid address"}
	}
	return nil
}

func consent(ok bool) error {
	if !ok {
		return &ValidationError{Field: "privacy_consent", Reason: "consent required", err: ErrConsentRequired}
	}
	return nil
}

// Normalize trims surrounding whitespace from every text field.
func (l *HospitalLead) Normalize() {
	l.HospitalName = strings.TrimSpace(l.HospitalName)
	l.ContactName = strings.TrimSpace(l.ContactName)
	l.Phone = strings.TrimSpace(l.Phone)
	l.Email = strings.TrimSpace(l.Email)
}

// Validate checks consent first, then every field in form order.
func (l *HospitalLead) Validate() error {
	if err := consent(l.PrivacyConsent); err != nil {
		return err
	}
	for _, err := range []error{
		required("hospital_name", l.HospitalName, maxNameLen),
		required("contact_name", l.ContactName, maxNameLen),
		required("phone", l.Phone, maxPhoneLen),
		validEmail(l.Email),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Consultation) Normalize() {
	c.CompanyName = strings.TrimSpace(c.CompanyName)
	c.ContactName = strings.TrimSpace(c.ContactName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
}

func (c *Consultation) Validate() error {
	if err := consent(c.PrivacyConsent); err != nil {
		return err
	}
	for _, err := range []error{
		required("company_name", c.CompanyName, maxNameLen),
		required("contact_name", c.ContactName, maxNameLen),
		validEmail(c.Email),
		required("phone", c.Phone, maxPhoneLen),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
