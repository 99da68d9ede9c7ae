// Package knowledge holds the static lookup tables the reply pipeline grounds its answers in:
// product categories with pricing and sizing, shipping terms per city, and the management
// report templates.
package knowledge

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProductEntry describes one product category
type ProductEntry struct {
	Category string `yaml:"category"`
	Prices   string `yaml:"prices"`
	Sizes    string `yaml:"sizes,omitempty"`
	Colors   string `yaml:"colors,omitempty"`
	Types    string `yaml:"types,omitempty"`
	Delivery string `yaml:"delivery,omitempty"`
}

// ShippingEntry describes delivery terms for one city
type ShippingEntry struct {
	City     string `yaml:"city"`
	Duration string `yaml:"duration"`
	Cost     string `yaml:"cost"`
}

// ReportTemplate is a management report layout
type ReportTemplate struct {
	Kind            string   `yaml:"kind"`
	Title           string   `yaml:"title"`
	Recommendations []string `yaml:"recommendations"`
}

// Base is the combined customer and management knowledge base.
// Entries are ordered; lookups return the first entry whose key appears in the message.
type Base struct {
	Products []ProductEntry   `yaml:"products"`
	Shipping []ShippingEntry  `yaml:"shipping"`
	Reports  []ReportTemplate `yaml:"reports"`
}

// Report kinds
const (
	ReportDaily   = "يومي"
	ReportWeekly  = "اسبوعي"
	ReportMonthly = "شهري"
)

// Default returns the built-in knowledge base
func Default() *Base {
	return &Base{
		Products: []ProductEntry{
			{
				Category: "ملابس",
				Prices:   "من 150 إلى 500 جنيه",
				Sizes:    "S, M, L, XL, XXL",
				Colors:   "أسود، أبيض، رمادي، كحلي، بيج",
				Delivery: "1-2 يوم داخل القاهرة",
			},
			{
				Category: "اكسسوارات",
				Prices:   "من 50 إلى 300 جنيه",
				Types:    "ساعات، نظارات، حقائب، مجوهرات",
				Delivery: "2-3 أيام لجميع المحافظات",
			},
			{
				Category: "احذية",
				Prices:   "من 200 إلى 700 جنيه",
				Sizes:    "38 - 45",
				Colors:   "أسود، بني، أبيض",
				Delivery: "2-3 أيام لجميع المحافظات",
			},
		},
		Shipping: []ShippingEntry{
			{City: "القاهرة", Duration: "24-48 ساعة", Cost: "25 جنيه"},
			{City: "الجيزة", Duration: "24-48 ساعة", Cost: "25 جنيه"},
			{City: "الاسكندرية", Duration: "2-3 أيام", Cost: "40 جنيه"},
			{City: "المنصورة", Duration: "3-4 أيام", Cost: "45 جنيه"},
			{City: "اسيوط", Duration: "3-5 أيام", Cost: "50 جنيه"},
		},
		Reports: []ReportTemplate{
			{
				Kind:  ReportDaily,
				Title: "التقرير اليومي",
				Recommendations: []string{
					"متابعة العملاء الجدد لتحويلهم إلى عملاء دائمين",
					"تحفيز المناديب على زيادة الأداء",
					"مراجعة أسباب إلغاء الطلبات",
				},
			},
			{
				Kind:  ReportWeekly,
				Title: "التقرير الأسبوعي",
				Recommendations: []string{
					"مقارنة المبيعات بالأسبوع السابق",
					"تحديد المنتجات الأكثر طلباً لزيادة المخزون",
				},
			},
			{
				Kind:  ReportMonthly,
				Title: "التقرير الشهري",
				Recommendations: []string{
					"مراجعة أداء كل مندوب خلال الشهر",
					"تقييم الحملات الإعلانية وتأثيرها على الطلبات",
				},
			},
		},
	}
}

// Load reads a YAML knowledge base from path. Sections absent from the file keep their
// built-in values.
func Load(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}

	var fromFile Base
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base %s: %w", path, err)
	}

	base := Default()
	if len(fromFile.Products) > 0 {
		base.Products = fromFile.Products
	}
	if len(fromFile.Shipping) > 0 {
		base.Shipping = fromFile.Shipping
	}
	if len(fromFile.Reports) > 0 {
		base.Reports = fromFile.Reports
	}
	return base, nil
}

// MatchProduct returns the first category whose name appears literally in message
func (b *Base) MatchProduct(message string) (ProductEntry, bool) {
	for _, p := range b.Products {
		if p.Category != "" && strings.Contains(message, p.Category) {
			return p, true
		}
	}
	return ProductEntry{}, false
}

// MatchCity returns the first city whose name appears literally in message
func (b *Base) MatchCity(message string) (ShippingEntry, bool) {
	for _, s := range b.Shipping {
		if s.City != "" && strings.Contains(message, s.City) {
			return s, true
		}
	}
	return ShippingEntry{}, false
}

// Report returns the template for kind, falling back to the daily template
func (b *Base) Report(kind string) ReportTemplate {
	for _, r := range b.Reports {
		if r.Kind == kind {
			return r
		}
	}
	for _, r := range b.Reports {
		if r.Kind == ReportDaily {
			return r
		}
	}
	return Default().Reports[0]
}

// Summary renders the entry as a single line of facts
func (p ProductEntry) Summary() string {
	parts := []string{p.Category + ": الاسعار " + p.Prices}
	if p.Sizes != "" {
		parts = append(parts, "المقاسات "+p.Sizes)
	}
	if p.Colors != "" {
		parts = append(parts, "الالوان "+p.Colors)
	}
	if p.Types != "" {
		parts = append(parts, "الانواع "+p.Types)
	}
	if p.Delivery != "" {
		parts = append(parts, "التوصيل "+p.Delivery)
	}
	return strings.Join(parts, "، ")
}

// Summary renders the shipping terms as a single line
func (s ShippingEntry) Summary() string {
	return fmt.Sprintf("التوصيل إلى %s خلال %s بتكلفة %s", s.City, s.Duration, s.Cost)
}
