package services

import (
	"strings"

	"autoreply-bot/models"
)

type intentKeywords struct {
	intent   models.IntentCategory
	keywords []string
}

// intentRules are evaluated in order; the first category with a matching keyword wins
var intentRules = []intentKeywords{
	{models.IntentPrice, []string{"سعر", "كم", "بكام", "السعر"}},
	{models.IntentAvailability, []string{"متاح", "فيه", "عندك", "عندكم"}},
	{models.IntentShipping, []string{"توصيل", "شحن", "وصل", "متى"}},
	{models.IntentProduct, []string{"منتج", "قطعة", "حاجة", " item"}},
}

// Classify maps a message to its intent category. Unmatched messages are general.
func Classify(message string) models.IntentCategory {
	lower := strings.ToLower(message)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent
			}
		}
	}
	return models.IntentGeneral
}

// needsContext reports whether the intent is grounded with knowledge-base facts
func needsContext(intent models.IntentCategory) bool {
	switch intent {
	case models.IntentPrice, models.IntentAvailability, models.IntentShipping, models.IntentProduct:
		return true
	}
	return false
}
