package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchProduct(t *testing.T) {
	kb := Default()

	p, ok := kb.MatchProduct("عايز اعرف سعر الاحذية الجديدة")
	require.True(t, ok)
	assert.Equal(t, "احذية", p.Category)

	_, ok = kb.MatchProduct("مرحبا")
	assert.False(t, ok)
}

func TestMatchProduct_FirstEntryWins(t *testing.T) {
	kb := Default()

	p, ok := kb.MatchProduct("ملابس و اكسسوارات")
	require.True(t, ok)
	assert.Equal(t, "ملابس", p.Category)
}

func TestMatchCity(t *testing.T) {
	kb := Default()

	s, ok := kb.MatchCity("التوصيل للاسكندرية بكام؟ انا في الاسكندرية")
	require.True(t, ok)
	assert.Equal(t, "40 جنيه", s.Cost)
	assert.Contains(t, s.Summary(), "الاسكندرية")
}

func TestReport_FallsBackToDaily(t *testing.T) {
	kb := Default()

	assert.Equal(t, "التقرير الأسبوعي", kb.Report(ReportWeekly).Title)
	assert.Equal(t, "التقرير اليومي", kb.Report("unknown").Title)
}

func TestProductSummary(t *testing.T) {
	p := ProductEntry{Category: "اكسسوارات", Prices: "من 50 إلى 300 جنيه", Types: "ساعات"}
	assert.Equal(t, "اكسسوارات: الاسعار من 50 إلى 300 جنيه، الانواع ساعات", p.Summary())
}

func TestLoad_OverridesOnlyPresentSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.yaml")
	content := `
shipping:
  - city: طنطا
    duration: 2 يوم
    cost: 30 جنيه
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	kb, err := Load(path)
	require.NoError(t, err)

	require.Len(t, kb.Shipping, 1)
	assert.Equal(t, "طنطا", kb.Shipping[0].City)
	assert.Equal(t, Default().Products, kb.Products)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products: [unclosed"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
