package service

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// FieldErrors maps a field name to the validation messages for it. Validation
// is batch-style: every violated rule is reported at once, never just the
// first. It doubles as the 400 response body shape.
type FieldErrors map[string][]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// Add appends a message for field.
func (e FieldErrors) Add(field, message string) {
	e[field] = append(e[field], message)
}

const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validation messages, field by field.
const (
	msgNameRequired     = "The name field is required."
	msgEmailRequired    = "The email field is required."
	msgEmailInvalid     = "The email must be a valid email address."
	msgEmailTaken       = "The email has already been taken."
	msgPasswordRequired = "The password field is required."
	msgPasswordTooShort = "The password must be at least 8 characters."
	msgPasswordNoMatch  = "The password confirmation does not match."
)

// validateRegistration checks the registration input against every rule and
// collects all violations. Email uniqueness is checked separately by the
// service, since it needs the store.
func validateRegistration(in RegisterInput) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(in.Name) == "" {
		errs.Add("name", msgNameRequired)
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		errs.Add("email", msgEmailRequired)
	} else if !emailPattern.MatchString(email) {
		errs.Add("email", msgEmailInvalid)
	}

	if in.Password == "" {
		errs.Add("password", msgPasswordRequired)
	} else {
		// Characters, not bytes: multibyte runes count once.
		if utf8.RuneCountInString(in.Password) < minPasswordLength {
			errs.Add("password", msgPasswordTooShort)
		}
		if in.Password != in.PasswordConfirmation {
			errs.Add("password", msgPasswordNoMatch)
		}
	}

	return errs
}
