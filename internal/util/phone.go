package util

import (
	"errors"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "GB"

var ErrInvalidPhone = errors.New("invalid phone number")

// PhoneNormalizer validates numbers against one region's numbering plan.
type PhoneNormalizer struct {
	region string
}

func NewPhoneNormalizer(region string) *PhoneNormalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return &PhoneNormalizer{region: region}
}

func (p *PhoneNormalizer) Region() string { return p.region }

// Normalize returns raw in the region's national display format, e.g. "07012345678" -> "070 1234 5678".
func (p *PhoneNormalizer) Normalize(raw string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), p.region)
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumberForRegion(num, p.region) {
		return "", ErrInvalidPhone
	}

	return phonenumbers.Format(num, phonenumbers.NATIONAL), nil
}

// MaskPhone replaces every non-whitespace rune except the last 4 with 'x'.
// "070 1234 5678" -> "xxx xxxx 5678".
func MaskPhone(display string) string {
	runes := []rune(display)
	if len(runes) <= 4 {
		return display
	}

	var sb strings.Builder
	sb.Grow(len(display))
	for _, r := range runes[:len(runes)-4] {
		if unicode.IsSpace(r) {
			sb.WriteRune(r)
			continue
		}
		sb.WriteByte('x')
	}
	sb.WriteString(string(runes[len(runes)-4:]))

	return sb.String()
}
