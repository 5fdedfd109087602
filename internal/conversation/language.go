package conversation

import (
	"strings"

	"golang.org/x/text/language"
)

// normalizeLanguage canonicalizes a BCP-47 tag ("EN-us" -> "en-US").
// Blank or unparseable input yields DefaultLanguage.
func normalizeLanguage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(raw)
	if err != nil || tag == language.Und {
		return DefaultLanguage
	}
	return tag.String()
}
