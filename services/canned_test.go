package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"autoreply-bot/models"
)

func TestCannedLookup_Keyword(t *testing.T) {
	table := NewCannedTable()

	got := table.Lookup(models.ContextCustomer, "ايه طرق الدفع؟", nil)
	assert.Contains(t, got, "نقبل الدفع نقداً")
}

func TestCannedLookup_FirstEntryWins(t *testing.T) {
	table := NewCannedTable()

	// both "السعر" and "التوصيل" match, the price entry comes first
	got := table.Lookup(models.ContextCustomer, "السعر مع التوصيل", nil)
	assert.Contains(t, got, "الأسعار تختلف حسب المنتج")
}

func TestCannedLookup_DefaultNeverEmpty(t *testing.T) {
	table := NewCannedTable()

	for _, ctxType := range []models.InquiryContext{models.ContextCustomer, models.ContextAssistant, models.ContextAdmin, "unknown"} {
		got := table.Lookup(ctxType, "zzz", nil)
		assert.NotEmpty(t, got, string(ctxType))
		assert.Equal(t, table.Default(ctxType, nil), got)
	}
}

func TestCannedLookup_UnknownContextUsesCustomer(t *testing.T) {
	table := NewCannedTable()

	assert.Equal(t,
		table.Lookup(models.ContextCustomer, "شكرا", nil),
		table.Lookup("support", "شكرا", nil))
}

func TestCannedLookup_PerContextTables(t *testing.T) {
	table := NewCannedTable()

	assert.Contains(t, table.Lookup(models.ContextAdmin, "عايز تقرير", nil), "تقرير إداري")
	assert.Contains(t, table.Lookup(models.ContextAssistant, "محتاج مساعدة", nil), "أنا هنا للمساعدة")
}
