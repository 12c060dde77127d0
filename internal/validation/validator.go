// Package validation holds the field rules applied to a client submission before it is stored.
package validation

import (
	"regexp"

	"github.com/chrismeller/mj/internal/model"
	"github.com/chrismeller/mj/internal/util"
)

// User-facing validation messages.
const (
	MsgEmailRequired  = "Email address is required."
	MsgEmailInvalid   = "The email address appears to be invalid."
	MsgPhoneRequired  = "Phone number is required."
	MsgPhoneInvalid   = "The phone number provided is not a valid format."
	MsgTooManyFields  = "You may only provide 10 properties for a client."
	MsgDuplicateEmail = "A client with that email address already exists."
)

// Something before the @, a dot somewhere after it, and at least one character around each.
// Hostnames without a dot and bare IPs are rejected on purpose.
var emailRe = regexp.MustCompile(`(.+)@(.+)\.(.+)`)

type Validator struct {
	phones *util.PhoneNormalizer
}

func New(phones *util.PhoneNormalizer) *Validator {
	return &Validator{phones: phones}
}

// Validate checks every rule and returns all failures (nil when valid).
// A valid phone is rewritten in place to its canonical display form.
func (v *Validator) Validate(fields model.Fields) []string {
	var errs []string

	if email := fields.Email(); email == "" {
		errs = append(errs, MsgEmailRequired)
	} else if !ValidEmail(email) {
		errs = append(errs, MsgEmailInvalid)
	}

	if phone := fields.Phone(); phone == "" {
		errs = append(errs, MsgPhoneRequired)
	} else if formatted, err := v.phones.Normalize(phone); err != nil {
		errs = append(errs, MsgPhoneInvalid)
	} else {
		fields[model.FieldPhone] = formatted
	}

	if len(fields) > model.MaxFields {
		errs = append(errs, MsgTooManyFields)
	}

	return errs
}

func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}
