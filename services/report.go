package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"autoreply-bot/knowledge"
	"autoreply-bot/models"
)

const reportDateLayout = "2006-01-02"

var agentTips = []string{
	"حاول تقليل وقت التوصيل",
	"تواصل بشكل أفضل مع العملاء",
	"استفد من ساعات الذروة",
}

// FormatDailyReport renders counters into the daily management report.
// The output depends only on its arguments.
func FormatDailyReport(c models.ReportCounters, tpl knowledge.ReportTemplate) string {
	title := tpl.Title
	if title == "" {
		title = "التقرير اليومي"
	}
	topAgent := c.Agents.TopAgent
	if topAgent == "" {
		topAgent = "-"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s - %s\n\n", title, c.Date.Format(reportDateLayout))

	b.WriteString("📈 أداء الطلبات:\n")
	fmt.Fprintf(&b, "• إجمالي الطلبات: %d\n", c.Orders.Total)
	fmt.Fprintf(&b, "• القيمة الإجمالية: %s جنيه\n", formatAmount(c.Orders.Value))
	fmt.Fprintf(&b, "• الطلبات الناجحة: %d\n", c.Orders.Succeeded)
	fmt.Fprintf(&b, "• الطلبات الملغاة: %d\n\n", c.Orders.Cancelled)

	b.WriteString("👥 العملاء:\n")
	fmt.Fprintf(&b, "• عملاء جدد: %d\n", c.Customers.New)
	fmt.Fprintf(&b, "• عملاء دائمون: %d\n\n", c.Customers.Returning)

	b.WriteString("🚚 المناديب:\n")
	fmt.Fprintf(&b, "• مناديب نشطون: %d\n", c.Agents.Active)
	fmt.Fprintf(&b, "• أفضل مندوب: %s\n", topAgent)

	if len(tpl.Recommendations) > 0 {
		b.WriteString("\n💡 توصيات:\n")
		for _, r := range tpl.Recommendations {
			fmt.Fprintf(&b, "• %s\n", r)
		}
	}

	return b.String()
}

// FormatAgentReport renders one agent's daily performance
func FormatAgentReport(date time.Time, p models.AgentPerformance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 تقرير أدائك اليومي - %s\n\n", date.Format(reportDateLayout))
	fmt.Fprintf(&b, "🚚 الطلبات المكتملة: %d\n", p.CompletedOrders)
	fmt.Fprintf(&b, "💰 إجمالي المبيعات: %s جنيه\n", formatAmount(p.TotalSales))
	fmt.Fprintf(&b, "⭐ تقييم العملاء: %s/5\n", strconv.FormatFloat(p.CustomerRating, 'f', -1, 64))
	fmt.Fprintf(&b, "🏆 ترتيبك: #%d بين المناديب\n\n", p.Rank)

	b.WriteString("💡 نصائح لتحسين الأداء:\n")
	for _, tip := range agentTips {
		fmt.Fprintf(&b, "• %s\n", tip)
	}
	b.WriteString("\nاستمر في العمل الجيد! 👏\n")
	return b.String()
}

// formatAmount drops the fraction for whole amounts
func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// GenerateDailyReport fetches the counters for day and formats them
func (m *ResponseManager) GenerateDailyReport(ctx context.Context, day time.Time) (string, error) {
	if m.counters == nil {
		return "", fmt.Errorf("no counter source configured")
	}

	counters, err := m.counters.DailyCounters(ctx, day)
	if err != nil {
		return "", fmt.Errorf("failed to load daily counters: %w", err)
	}
	if counters.Date.IsZero() {
		counters.Date = day
	}

	return FormatDailyReport(counters, m.kb.Report(knowledge.ReportDaily)), nil
}
