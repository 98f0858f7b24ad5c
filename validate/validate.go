// Package validate checks submitted form fields against the field contract
// the form schema promises: email format, bounded name length, adult age
// range, fixed gender choices, minimum password length, ISO dates.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"formsystem/backend/fault"
	"formsystem/backend/types"
)

const (
	NameMinLength     = 2
	NameMaxLength     = 50
	AgeMin            = 18
	AgeMax            = 120
	PasswordMinLength = 6
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var allowedGenders = map[string]bool{
	"male":   true,
	"female": true,
	"other":  true,
}

// NormalizeEmail lowercases and trims an email so that addresses differing
// only in case or surrounding whitespace share one identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FormData validates every recognized field that is present. Fields beyond
// the recognized set pass through untouched.
func FormData(data types.FormData) error {
	if len(data) == 0 {
		return fault.Invalid("form_data", "Form data cannot be empty")
	}

	if v, ok := data["email"]; ok {
		if err := emailFormat(v); err != nil {
			return err
		}
	}
	if v, ok := data["name"]; ok {
		if err := name(v); err != nil {
			return err
		}
	}
	if v, ok := data["age"]; ok {
		if err := age(v); err != nil {
			return err
		}
	}
	if v, ok := data["gender"]; ok {
		if err := gender(v); err != nil {
			return err
		}
	}
	if v, ok := data["password"]; ok {
		if err := password(v); err != nil {
			return err
		}
	}
	if v, ok := data["date"]; ok {
		if err := date(v); err != nil {
			return err
		}
	}
	return nil
}

func emailFormat(v interface{}) error {
	email, ok := v.(string)
	if !ok {
		return fault.Invalid("email", "Email must be a string")
	}
	if strings.TrimSpace(email) == "" {
		return fault.Invalid("email", "Email cannot be empty")
	}
	if !emailPattern.MatchString(email) {
		return fault.Invalid("email", "Invalid email format")
	}
	return nil
}

func name(v interface{}) error {
	s, ok := v.(string)
	if !ok {
		return fault.Invalid("name", "Name must be a string")
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return fault.Invalid("name", "Name cannot be empty")
	}
	if len(trimmed) < NameMinLength {
		return fault.Invalid("name", fmt.Sprintf("Name must be at least %d characters", NameMinLength))
	}
	if len(trimmed) > NameMaxLength {
		return fault.Invalid("name", fmt.Sprintf("Name must be at most %d characters", NameMaxLength))
	}
	return nil
}

// age accepts numbers and numeric strings; JSON decoding hands numbers over
// as float64.
func age(v interface{}) error {
	var n int
	switch a := v.(type) {
	case float64:
		n = int(a)
	case int:
		n = a
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return fault.Invalid("age", "Age must be a number")
		}
		n = parsed
	default:
		return fault.Invalid("age", "Age must be a number")
	}
	if n < AgeMin || n > AgeMax {
		return fault.Invalid("age", fmt.Sprintf("Age must be between %d and %d", AgeMin, AgeMax))
	}
	return nil
}

func gender(v interface{}) error {
	s, ok := v.(string)
	if !ok {
		return fault.Invalid("gender", "Gender must be a string")
	}
	if !allowedGenders[strings.ToLower(s)] {
		return fault.Invalid("gender", "Gender must be one of: male, female, other")
	}
	return nil
}

func password(v interface{}) error {
	s, ok := v.(string)
	if !ok {
		return fault.Invalid("password", "Password must be a string")
	}
	if len(s) < PasswordMinLength {
		return fault.Invalid("password", fmt.Sprintf("Password must be at least %d characters", PasswordMinLength))
	}
	return nil
}

func date(v interface{}) error {
	s, ok := v.(string)
	if !ok {
		return fault.Invalid("date", "Date must be in format YYYY-MM-DD")
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fault.Invalid("date", "Date must be in format YYYY-MM-DD")
	}
	return nil
}
