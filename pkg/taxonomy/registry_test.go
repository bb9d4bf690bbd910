package taxonomy_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/taxonomy"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/testutil"
)

func TestTypeInference(t *testing.T) {
	registry := testutil.Registry(t)

	tests := []struct {
		name     string
		expected taxonomy.Type
	}{
		{"a1101", taxonomy.TypeInteger},
		{"a1401", taxonomy.TypeMonetary},
		{"a1502", taxonomy.TypeString},
		{"a2101", taxonomy.TypeDecimal},
		{"a1501", taxonomy.TypeBoolean},
		{"a1503", taxonomy.TypeBoolean},
		{"a2102", taxonomy.TypeDecimal},
		{"a2103", taxonomy.TypeString},
		{"a2104", taxonomy.TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, ok := registry.Element(tt.name)
			require.True(t, ok, "element %s should be present", tt.name)
			assert.Equal(t, tt.expected, el.Type)
		})
	}
}

func TestAbstractElementsAreSkipped(t *testing.T) {
	registry := testutil.Registry(t)

	_, ok := registry.Element("Survey_Abstract")
	assert.False(t, ok)
	assert.Equal(t, 27, registry.Len())
}

func TestUnknownElementIsAbsent(t *testing.T) {
	registry := testutil.Registry(t)

	el, ok := registry.Element("z9999")
	assert.False(t, ok)
	assert.Equal(t, taxonomy.Element{}, el)
}

func TestLabels(t *testing.T) {
	registry := testutil.Registry(t)

	el, _ := registry.Element("a1102")
	assert.Equal(t, "Clients personnes physiques", el.Label)
	assert.Equal(t, "Clients personnes physiques (détail)", el.VerboseLabel)

	t.Run("arc without locator falls back to the endpoint", func(t *testing.T) {
		el, _ := registry.Element("a2104")
		assert.Equal(t, "Commentaires", el.Label)
		assert.Empty(t, el.VerboseLabel)
	})

	t.Run("short labels come from the overrides table", func(t *testing.T) {
		el, _ := registry.Element("a1101")
		assert.Equal(t, "Clients", el.ShortLabel)
		assert.Equal(t, "Clients", el.DisplayLabel())

		el, _ = registry.Element("a1102")
		assert.Equal(t, el.Label, el.DisplayLabel())
	})
}

func TestPresentationOrderIsGlobal(t *testing.T) {
	registry := testutil.Registry(t)

	tests := []struct {
		name    string
		order   int
		section string
	}{
		{"a1101", 1, "Clients et beneficiaires"},
		{"a1702", 9, "Clients et beneficiaires"},
		{"a1301", 10, "Operations"},
		{"a1601", 21, "Operations"},
		{"a1801", 22, "Controles internes"},
		{"a2103", 26, "Controles internes"},
		{"a2104", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, _ := registry.Element(tt.name)
			assert.Equal(t, tt.order, el.Order)
			assert.Equal(t, tt.section, el.Section)
		})
	}

	elements := registry.Elements()
	require.NotEmpty(t, elements)
	assert.Equal(t, "a1101", elements[0].Name)
	assert.Equal(t, "a2104", elements[len(elements)-1].Name, "unordered elements sort last")
	for i := 1; i < len(elements)-1; i++ {
		assert.Less(t, elements[i-1].Order, elements[i].Order)
	}
}

func TestElementsBySection(t *testing.T) {
	registry := testutil.Registry(t)

	sections := registry.ElementsBySection()
	require.Len(t, sections, 4)
	assert.Equal(t, "Clients et beneficiaires", sections[0].Name)
	assert.Equal(t, "Operations", sections[1].Name)
	assert.Equal(t, "Controles internes", sections[2].Name)
	assert.Equal(t, "", sections[3].Name)
	assert.Len(t, sections[0].Elements, 9)
	assert.Len(t, sections[1].Elements, 12)
}

func TestDimensionalFlag(t *testing.T) {
	registry := testutil.Registry(t)

	for _, el := range registry.Elements() {
		assert.Equal(t, el.Name == taxonomy.DimensionalElement, el.Dimensional, el.Name)
	}
}

func TestMergeBreakdown(t *testing.T) {
	merged, conflicts := taxonomy.MergeBreakdown(
		map[string]int{"FR": 3, "MC": 1},
		map[string]int{"FR": 2, "IT": 4},
	)
	assert.Equal(t, map[string]int{"FR": 2, "MC": 1, "IT": 4}, merged)
	assert.Equal(t, []string{"FR"}, conflicts)

	mergedStrings, conflicts := taxonomy.MergeBreakdown(nil, map[string]string{"DE": "1"})
	assert.Equal(t, map[string]string{"DE": "1"}, mergedStrings)
	assert.Empty(t, conflicts)
}

func TestLoadErrors(t *testing.T) {
	files := testutil.WriteTaxonomy(t)

	t.Run("missing file", func(t *testing.T) {
		broken := files
		broken.Labels = filepath.Join(t.TempDir(), "missing_lab.xml")

		registry := taxonomy.NewRegistry(broken)
		err := registry.Load()

		var loadErr *taxonomy.LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, broken.Labels, loadErr.File)
		assert.Equal(t, 0, registry.Len())
		assert.Same(t, err, registry.Load(), "a failed load is not retried implicitly")
	})

	t.Run("malformed XML", func(t *testing.T) {
		broken := files
		broken.Schema = filepath.Join(t.TempDir(), "broken.xsd")
		require.NoError(t, os.WriteFile(broken.Schema, []byte("<xs:schema><xs:element"), 0644))

		err := taxonomy.NewRegistry(broken).Load()
		var loadErr *taxonomy.LoadError
		assert.True(t, errors.As(err, &loadErr))
	})

	t.Run("startup policy", func(t *testing.T) {
		broken := files
		broken.Presentation = filepath.Join(t.TempDir(), "missing_pre.xml")

		assert.Error(t, taxonomy.NewRegistry(broken).LoadAtStartup(true))
		assert.NoError(t, taxonomy.NewRegistry(broken).LoadAtStartup(false))
	})

	t.Run("invalid type override", func(t *testing.T) {
		broken := files
		broken.Overrides = filepath.Join(t.TempDir(), "overrides.yaml")
		require.NoError(t, os.WriteFile(broken.Overrides, []byte("type_overrides:\n  a1101: money\n"), 0644))

		assert.Error(t, taxonomy.NewRegistry(broken).Load())
	})
}

func TestConcurrentLoad(t *testing.T) {
	registry := taxonomy.NewRegistry(testutil.WriteTaxonomy(t))

	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := registry.Load(); err == nil {
				results[i] = registry.Len()
			}
		}(i)
	}
	wg.Wait()

	for _, n := range results {
		assert.Equal(t, 27, n)
	}
}

func TestReload(t *testing.T) {
	files := testutil.WriteTaxonomy(t)
	registry := taxonomy.NewRegistry(files)
	require.NoError(t, registry.Load())

	require.NoError(t, os.WriteFile(files.Overrides, []byte("short_labels:\n  a1102: Personnes physiques\n"), 0644))
	require.NoError(t, registry.Reload())

	el, _ := registry.Element("a1102")
	assert.Equal(t, "Personnes physiques", el.ShortLabel)
	el, _ = registry.Element("a1101")
	assert.Empty(t, el.ShortLabel)

	t.Run("failed reload keeps previous elements", func(t *testing.T) {
		require.NoError(t, os.Remove(files.Schema))
		assert.Error(t, registry.Reload())
		assert.Equal(t, 27, registry.Len())
	})
}

func TestLazyLoadOnRead(t *testing.T) {
	registry := taxonomy.NewRegistry(testutil.WriteTaxonomy(t))

	_, ok := registry.Element("a1101")
	assert.True(t, ok)
}
