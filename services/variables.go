package services

import (
	"regexp"
	"strings"

	"autoreply-bot/models"
)

var orderIDPattern = regexp.MustCompile(`#\d+`)

// Substitute replaces every {key} placeholder in text with its value.
// Placeholders without a value are left as they are.
func Substitute(text string, vars models.VariableMap) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// ExtractOrderID returns the first "#123" style token in message, or ""
func ExtractOrderID(message string) string {
	return orderIDPattern.FindString(message)
}
