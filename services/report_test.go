package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply-bot/knowledge"
	"autoreply-bot/models"
)

func TestFormatDailyReport(t *testing.T) {
	counters := models.ReportCounters{
		Date:      time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC),
		Orders:    models.OrderCounters{Total: 25, Value: 7350, Succeeded: 20, Cancelled: 2},
		Customers: models.CustomerCounters{New: 8, Returning: 12},
		Agents:    models.AgentCounters{Active: 4, TopAgent: "محمود"},
	}
	tpl := knowledge.ReportTemplate{Title: "التقرير اليومي", Recommendations: []string{"راجع الإلغاءات"}}

	want := "📊 التقرير اليومي - 2024-05-20\n\n" +
		"📈 أداء الطلبات:\n" +
		"• إجمالي الطلبات: 25\n" +
		"• القيمة الإجمالية: 7350 جنيه\n" +
		"• الطلبات الناجحة: 20\n" +
		"• الطلبات الملغاة: 2\n\n" +
		"👥 العملاء:\n" +
		"• عملاء جدد: 8\n" +
		"• عملاء دائمون: 12\n\n" +
		"🚚 المناديب:\n" +
		"• مناديب نشطون: 4\n" +
		"• أفضل مندوب: محمود\n" +
		"\n💡 توصيات:\n" +
		"• راجع الإلغاءات\n"

	assert.Equal(t, want, FormatDailyReport(counters, tpl))
}

func TestFormatDailyReport_IsPure(t *testing.T) {
	counters := models.ReportCounters{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	tpl := knowledge.Default().Report(knowledge.ReportDaily)

	first := FormatDailyReport(counters, tpl)
	assert.Equal(t, first, FormatDailyReport(counters, tpl))
	assert.Contains(t, first, "• أفضل مندوب: -")
	assert.Contains(t, first, "• القيمة الإجمالية: 0 جنيه")
}

func TestFormatAgentReport(t *testing.T) {
	report := FormatAgentReport(time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), models.AgentPerformance{
		CompletedOrders: 9,
		TotalSales:      1250.5,
		CustomerRating:  4.8,
		Rank:            2,
	})

	assert.Contains(t, report, "📊 تقرير أدائك اليومي - 2024-05-20")
	assert.Contains(t, report, "🚚 الطلبات المكتملة: 9")
	assert.Contains(t, report, "💰 إجمالي المبيعات: 1250.50 جنيه")
	assert.Contains(t, report, "⭐ تقييم العملاء: 4.8/5")
	assert.Contains(t, report, "🏆 ترتيبك: #2 بين المناديب")
	assert.Contains(t, report, "استمر في العمل الجيد! 👏")
}

func TestParseDailyAt(t *testing.T) {
	h, m, err := ParseDailyAt("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 30, m)

	_, _, err = ParseDailyAt("25:00")
	assert.Error(t, err)
}

func TestNextRun(t *testing.T) {
	loc := time.UTC

	now := time.Date(2024, 5, 20, 8, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 5, 20, 9, 0, 0, 0, loc), NextRun(now, 9, 0))

	now = time.Date(2024, 5, 20, 9, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 5, 21, 9, 0, 0, 0, loc), NextRun(now, 9, 0))

	now = time.Date(2024, 12, 31, 23, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 1, 1, 9, 0, 0, 0, loc), NextRun(now, 9, 0))
}
