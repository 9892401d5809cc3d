package audit

import (
	"strings"

	"github.com/ent0n29/medtranslate/internal/policy"
)

const redactedValue = "[REDACTED]"

// sensitiveKeys never appear in the trail with their value, whatever it is.
var sensitiveKeys = map[string]bool{
	"transcript":  true,
	"translation": true,
	"text":        true,
	"plaintext":   true,
	"audio":       true,
	"key":         true,
	"password":    true,
	"secret":      true,
	"token":       true,
	"api_key":     true,
}

// SanitizeDetails copies details, blanking sensitive keys and masking PII in
// string values. Nested maps are sanitized recursively.
func SanitizeDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if sensitiveKeys[strings.ToLower(k)] {
			out[k] = redactedValue
			continue
		}
		switch t := v.(type) {
		case string:
			redacted, _ := policy.RedactPII(t)
			out[k] = redacted
		case error:
			redacted, _ := policy.RedactPII(t.Error())
			out[k] = redacted
		case map[string]any:
			out[k] = SanitizeDetails(t)
		default:
			out[k] = v
		}
	}
	return out
}
