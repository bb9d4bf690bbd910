package xbrl_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/testutil"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/xbrl"
)

var (
	org        = db.Organization{ID: 1, Name: "Agence du Port", RegistrationID: "RE-042"}
	submission = &db.Submission{ID: 7, OrganizationID: 1, Year: 2024}
)

func values() []db.SubmissionValue {
	return []db.SubmissionValue{
		{ElementName: "a1401", Value: "1234.5"},
		{ElementName: "a1101", Value: "6"},
		{ElementName: "a1103", Value: `{"MC":1,"FR":3}`},
		{ElementName: "a1501", Value: "true"},
		{ElementName: "a1503", Value: "non"},
		{ElementName: "a1502", Value: "2"},
		{ElementName: "a2103", Value: "Agence & Co"},
		{ElementName: "a2104", Value: "   "},
		{ElementName: "z9999", Value: "orphan"},
	}
}

func generate(t *testing.T, vals []db.SubmissionValue) (*xbrl.Document, *xbrl.Instance) {
	t.Helper()

	gen := xbrl.NewGenerator(xbrl.DefaultConfig(testutil.TaxonomyVersion), testutil.Registry(t))
	doc, err := gen.Build(org, submission, vals)
	require.NoError(t, err)

	inst, err := xbrl.Parse(doc.Content)
	require.NoError(t, err)
	return doc, inst
}

func TestRoundTrip(t *testing.T) {
	_, inst := generate(t, values())

	entity, ok := inst.EntityContext()
	require.True(t, ok)
	assert.Equal(t, "RE-042", entity.Identifier)
	assert.Equal(t, "2024-12-31", entity.Instant)
	assert.Empty(t, entity.Members)
	assert.Equal(t, "strix_test.xsd", inst.SchemaRef)

	eur, ok := inst.Unit(xbrl.UnitEUR)
	require.True(t, ok)
	assert.Equal(t, "iso4217:EUR", eur.Measure)
	pure, ok := inst.Unit(xbrl.UnitPure)
	require.True(t, ok)
	assert.Equal(t, "xbrli:pure", pure.Measure)
}

func TestFactFormatting(t *testing.T) {
	_, inst := generate(t, values())

	tests := []struct {
		name     string
		value    string
		unitRef  string
		decimals string
	}{
		{"a1401", "1234.50", xbrl.UnitEUR, "2"},
		{"a1101", "6", xbrl.UnitPure, "0"},
		{"a1501", "Yes", "", ""},
		{"a1503", "No", "", ""},
		{"a1502", "2", "", ""},
		{"a2103", "Agence & Co", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := inst.Fact(tt.name, xbrl.EntityContextID)
			require.True(t, ok)
			assert.Equal(t, tt.value, f.Value)
			assert.Equal(t, tt.unitRef, f.UnitRef)
			assert.Equal(t, tt.decimals, f.Decimals)
		})
	}
}

func TestMonetaryFormatting(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"12", "12.00"},
		{"1234.5", "1234.50"},
		{"90071992547409.93", "90071992547409.93"},
		{"12345678901234567890.1", "12345678901234567890.10"},
		{"0.005", "0.01"},
		{"19.995", "20.00"},
		{"99.999", "100.00"},
		{"-3.456", "-3.46"},
		{"-0.001", "0.00"},
		{"+7", "7.00"},
		{".5", "0.50"},
		{"007.1", "7.10"},
		{"1e3", "1e3"},
		{"1,000.00", "1,000.00"},
		{"1.2.3", "1.2.3"},
		{"-", "-"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, inst := generate(t, []db.SubmissionValue{{ElementName: "a1401", Value: tt.raw}})
			f, ok := inst.Fact("a1401", xbrl.EntityContextID)
			require.True(t, ok)
			assert.Equal(t, tt.want, f.Value)
		})
	}
}

func TestBlankAndUnknownValuesAreSkipped(t *testing.T) {
	doc, inst := generate(t, values())

	assert.Empty(t, inst.FactsByName("a2104"))
	assert.Empty(t, inst.FactsByName("z9999"))
	assert.NotContains(t, doc.Content, "z9999")
}

func TestClosure(t *testing.T) {
	registry := testutil.Registry(t)
	_, inst := generate(t, values())

	for _, f := range inst.Facts {
		_, ok := registry.Element(f.Name)
		assert.True(t, ok, "fact %s has no taxonomy element", f.Name)
	}
}

func TestCountryContexts(t *testing.T) {
	doc, inst := generate(t, values())

	assert.Equal(t, []string{"FR", "MC"}, doc.Countries)

	fr, ok := inst.Context("ctx_country_FR")
	require.True(t, ok)
	assert.Equal(t, "RE-042", fr.Identifier)
	assert.Equal(t, "2024-12-31", fr.Instant)
	require.Len(t, fr.Members, 1)
	assert.Equal(t, "strix:CountryDimension", fr.Members[0].Dimension)
	assert.Equal(t, "strix:FR", fr.Members[0].Value)

	facts := inst.FactsByName("a1103")
	require.Len(t, facts, 2)
	assert.Equal(t, "ctx_country_FR", facts[0].ContextRef)
	assert.Equal(t, "3", facts[0].Value)
	assert.Equal(t, "ctx_country_MC", facts[1].ContextRef)
	assert.Equal(t, xbrl.UnitPure, facts[1].UnitRef)

	_, ok = inst.Fact("a1103", xbrl.EntityContextID)
	assert.False(t, ok, "the dimensional element is never reported against the entity context")

	assert.Less(t, strings.Index(doc.Content, `id="ctx_country_FR"`), strings.Index(doc.Content, `id="ctx_country_MC"`))
}

func TestPerCountryRows(t *testing.T) {
	doc, inst := generate(t, []db.SubmissionValue{
		{ElementName: "a1103_it", Value: "2"},
		{ElementName: "a1103_DE", Value: "1"},
		{ElementName: "a1103_XXX", Value: "5"},
	})

	assert.Equal(t, []string{"DE", "IT"}, doc.Countries)
	f, ok := inst.Fact("a1103", "ctx_country_IT")
	require.True(t, ok)
	assert.Equal(t, "2", f.Value)
	assert.Len(t, inst.Facts, 2)
}

func TestRowsReplaceBreakdownEntries(t *testing.T) {
	doc, inst := generate(t, []db.SubmissionValue{
		{ElementName: "a1103", Value: `{"FR":3,"MC":1}`},
		{ElementName: "a1103_FR", Value: "2"},
	})

	assert.Equal(t, []string{"FR", "MC"}, doc.Countries)
	facts := inst.FactsByName("a1103")
	require.Len(t, facts, 2)
	assert.Equal(t, "ctx_country_FR", facts[0].ContextRef)
	assert.Equal(t, "2", facts[0].Value)
	assert.Equal(t, "ctx_country_MC", facts[1].ContextRef)
	assert.Equal(t, "1", facts[1].Value)
}

func TestMalformedInputDoesNotAbort(t *testing.T) {
	doc, inst := generate(t, []db.SubmissionValue{
		{ElementName: "a1402", Value: "about 1200"},
		{ElementName: "a1103", Value: "FR:3"},
		{ElementName: "a1101", Value: "4"},
	})

	f, ok := inst.Fact("a1402", xbrl.EntityContextID)
	require.True(t, ok)
	assert.Equal(t, "about 1200", f.Value)
	assert.Empty(t, doc.Countries)
	assert.Equal(t, 2, doc.FactCount)
}

func TestFactOrder(t *testing.T) {
	_, inst := generate(t, values())

	var names []string
	for _, f := range inst.Facts {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a1101", "a1103", "a1103", "a1401", "a1501", "a1502", "a1503", "a2103"}, names)
}

func TestGenerateRequiresRegistrationID(t *testing.T) {
	gen := xbrl.NewGenerator(xbrl.DefaultConfig(testutil.TaxonomyVersion), testutil.Registry(t))

	_, err := gen.Generate(db.Organization{ID: 3}, submission, values())
	assert.Error(t, err)

	_, err = gen.Generate(org, nil, values())
	assert.Error(t, err)

	content, err := gen.Generate(org, submission, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content, "<?xml"))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "amsf_survey_2024_RE-042.xml", xbrl.FileName("amsf_survey", 2024, "RE-042"))
}

func TestParseRejectsForeignDocuments(t *testing.T) {
	_, err := xbrl.Parse(`<html><body/></html>`)
	assert.Error(t, err)

	_, err = xbrl.Parse(`<xbrli:xbrl xmlns:xbrli="http://www.xbrl.org/2003/instance">`)
	assert.Error(t, err)

	_, err = xbrl.Parse("")
	assert.Error(t, err)
}
