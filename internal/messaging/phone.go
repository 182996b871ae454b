package messaging

import (
	"regexp"
	"strings"
)

const whatsappPrefix = "whatsapp:"

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
// A whatsapp: prefix is kept.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	prefix := ""
	if strings.HasPrefix(strings.ToLower(value), whatsappPrefix) {
		prefix = whatsappPrefix
		value = value[len(whatsappPrefix):]
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return prefix + "+" + digits
}

// Channel reports whether an address belongs to WhatsApp or plain SMS.
func Channel(address string) string {
	if IsWhatsApp(address) {
		return "whatsapp"
	}
	return "sms"
}

func IsWhatsApp(address string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(address)), whatsappPrefix)
}

func sanitizePhone(value string) string {
	return strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
}
