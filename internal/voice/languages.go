package voice

import (
	"fmt"
	"strings"
)

type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

var supportedLanguages = []Language{
	{Name: "English", Code: "en"},
	{Name: "Spanish", Code: "es"},
	{Name: "French", Code: "fr"},
	{Name: "German", Code: "de"},
	{Name: "Chinese", Code: "zh"},
	{Name: "Arabic", Code: "ar"},
	{Name: "Hindi", Code: "hi"},
	{Name: "Tamil", Code: "ta"},
}

// SupportedLanguages returns the languages offered to clients, in display order.
func SupportedLanguages() []Language {
	out := make([]Language, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// ResolveLanguage accepts a display name or a code, case-insensitively.
func ResolveLanguage(nameOrCode string) (Language, error) {
	v := strings.TrimSpace(nameOrCode)
	for _, l := range supportedLanguages {
		if strings.EqualFold(l.Name, v) || strings.EqualFold(l.Code, v) {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("unsupported language %q", nameOrCode)
}
