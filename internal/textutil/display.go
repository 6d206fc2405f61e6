package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// DisplayTitle derives a presentable title from a raw name or filename stem.
// Underscores and dashes become spaces and words are title-cased.
func DisplayTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if idx := strings.LastIndex(value, "."); idx > 0 {
		value = value[:idx]
	}
	replacer := strings.NewReplacer("_", " ", "-", " ")
	value = replacer.Replace(value)
	value = strings.Join(strings.Fields(value), " ")
	return titleCaser.String(value)
}
