package whatsapp

import (
	"net/url"
	"regexp"
	"strings"
)

const productNamePlaceholder = "{{productName}}"

var digitsOnly = regexp.MustCompile(`^[0-9]{8,15}$`)

// ValidNumber reports whether number is usable for a wa.me link: digits only,
// country code included, no formatting characters.
func ValidNumber(number string) bool {
	return digitsOnly.MatchString(number)
}

// Sanitize strips common formatting (spaces, dashes, parentheses, leading +)
// from a contact number.
func Sanitize(number string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(number) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RenderMessage fills the {{productName}} placeholder in a seller's message
// template.
func RenderMessage(template, productName string) string {
	if strings.TrimSpace(template) == "" {
		template = "Hi! I'm interested in " + productNamePlaceholder
	}
	return strings.ReplaceAll(template, productNamePlaceholder, productName)
}

// BuildLink returns the pre-filled wa.me contact link for a product, or an
// empty string when the seller has no usable contact number.
func BuildLink(number, template, productName string) string {
	n := Sanitize(number)
	if !ValidNumber(n) {
		return ""
	}
	u := url.URL{
		Scheme:   "https",
		Host:     "wa.me",
		Path:     "/" + n,
		RawQuery: url.Values{"text": {RenderMessage(template, productName)}}.Encode(),
	}
	return u.String()
}
