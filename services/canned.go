package services

import (
	"strings"

	"autoreply-bot/models"
)

// CannedEntry is one keyword-triggered reply
type CannedEntry struct {
	Keyword  string
	Template string
}

// cannedSet is the ordered rule list and default reply of one context
type cannedSet struct {
	entries  []CannedEntry
	fallback string
}

// CannedTable is the terminal fallback of the reply pipeline. Lookup never returns "".
type CannedTable struct {
	sets map[models.InquiryContext]cannedSet
}

// NewCannedTable returns the table with the built-in replies for every context
func NewCannedTable() *CannedTable {
	return &CannedTable{
		sets: map[models.InquiryContext]cannedSet{
			models.ContextCustomer: {
				entries: []CannedEntry{
					{"مرحبا", "مرحباً بك! 👋 أنا مساعدك الشخصي، كيف يمكنني مساعدتك اليوم؟"},
					{"شكرا", "العفو! 😊 في خدمتك دائماً، لا تنسى متابعة صفحتنا للمزيد من العروض."},
					{"السعر", "💰 الأسعار تختلف حسب المنتج. أرسل لي صورة المنتج المطلوب أو رقم الموديل وسأقوم بإخبارك بالسعر فوراً!"},
					{"العنوان", "📍 عنواننا: القاهرة، مصر. يمكننا أيضاً توصيل الطلب لأي مكان داخل القاهرة والجيزة."},
					{"التوصيل", "🚚 خدمة التوصيل متاحة داخل القاهرة والجيزة خلال 24-48 ساعة. تكلفة التوصيل 25 جنيه."},
					{"الدفع", "💳 نقبل الدفع نقداً عند الاستلام أو تحويل بنكي أو فودافون كاش."},
					{"متاح", "✅ معظم المنتجات متاحة، أرسل لي اسم المنتج أو صورته للتأكد من توافره."},
					{"خصم", "🎯 عروض خاصة متاحة حالياً! اشترِ 2 واحصل على الثالث مجاناً على منتجات مختارة."},
				},
				fallback: "شكراً لتواصلك معنا! 😊 سأقوم بالرد عليك فوراً، كيف يمكنني مساعدتك اليوم؟",
			},
			models.ContextAssistant: {
				entries: []CannedEntry{
					{"شرح", "سأشرح لك هذه الصفحة خطوة بخطوة. هذه الصفحة تتيح لك إدارة إعدادات فيسبوك وربط حسابك بسهولة."},
					{"مساعدة", "أنا هنا للمساعدة! يمكنني شرح أي جزء من النظام، تقديم نصائح لتحسين الأداء، أو مساعدتك في حل المشكلات."},
					{"إعدادات", "يمكنك تعديل الإعدادات من القائمة الجانبية. كل خدمة لها صفحة إعدادات مستقلة للتحكم الكامل."},
				},
				fallback: "كيف يمكنني مساعدتك في إدارة النظام اليوم؟ يمكنني شرح أي جزء أو مساعدتك في حل المشكلات.",
			},
			models.ContextAdmin: {
				entries: []CannedEntry{
					{"تقرير", "سأقوم بتحليل البيانات وتقديم تقرير إداري شامل عن أداء النظام وتوصيات للتحسين."},
					{"تحليل", "بناءً على البيانات المتوفرة، يمكنني تحليل أداء المبيعات، سلوك العملاء، وكفاءة المناديب."},
				},
				fallback: "كيف يمكنني مساعدتك في اتخاذ القرارات الإدارية اليوم؟",
			},
		},
	}
}

// Lookup returns the first template whose keyword appears in message, or the context's
// default, with vars substituted. Unknown contexts use the customer table.
func (t *CannedTable) Lookup(ctxType models.InquiryContext, message string, vars models.VariableMap) string {
	set, ok := t.sets[ctxType]
	if !ok {
		set = t.sets[models.ContextCustomer]
	}

	lower := strings.ToLower(message)
	for _, e := range set.entries {
		if strings.Contains(lower, strings.ToLower(e.Keyword)) {
			return Substitute(e.Template, vars)
		}
	}
	return Substitute(set.fallback, vars)
}

// Default returns the default reply of a context with vars substituted
func (t *CannedTable) Default(ctxType models.InquiryContext, vars models.VariableMap) string {
	set, ok := t.sets[ctxType]
	if !ok {
		set = t.sets[models.ContextCustomer]
	}
	return Substitute(set.fallback, vars)
}
