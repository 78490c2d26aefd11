package school

import (
	"regexp"
	"strings"
)

// Form field names, shared by validation results and the HTTP form encoding.
const (
	FieldName    = "name"
	FieldAddress = "address"
	FieldCity    = "city"
	FieldState   = "state"
	FieldContact = "contact"
	FieldEmail   = "email"
	FieldImage   = "image"
)

var (
	contactPattern = regexp.MustCompile(`^[0-9+-]{10,}$`)
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Result is the outcome of form validation. Errors maps field name to message.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors"`
}

// Validate checks every field independently and reports every violation.
func Validate(f FormData) Result {
	errs := make(map[string]string)

	required := func(field, value, msg string) bool {
		if strings.TrimSpace(value) == "" {
			errs[field] = msg
			return false
		}
		return true
	}

	required(FieldName, f.Name, "School name is required")
	required(FieldAddress, f.Address, "Address is required")
	required(FieldCity, f.City, "City is required")
	required(FieldState, f.State, "State is required")

	if required(FieldContact, f.Contact, "Contact number is required") && !contactPattern.MatchString(f.Contact) {
		errs[FieldContact] = "Please enter a valid phone number"
	}
	if required(FieldEmail, f.Email, "Email is required") && !emailPattern.MatchString(f.Email) {
		errs[FieldEmail] = "Please enter a valid email address"
	}
	if f.Image == nil {
		errs[FieldImage] = "School image is required"
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ValidateUpdate is Validate for the edit form, where leaving the image empty
// keeps the stored one.
func ValidateUpdate(f FormData) Result {
	res := Validate(f)
	delete(res.Errors, FieldImage)
	res.Valid = len(res.Errors) == 0
	return res
}
