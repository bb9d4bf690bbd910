package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/pathutil"
)

func newRepository(t *testing.T) (*FileSystemRepository, string) {
	t.Helper()

	dir := t.TempDir()
	return NewFileSystemRepository(pathutil.New(pathutil.Config{OutputDir: dir})), dir
}

func TestWriteAndReadDocument(t *testing.T) {
	repo, dir := newRepository(t)
	content := "<xbrli:xbrl/>\n"

	stored, err := repo.WriteDocument(2024, "amsf_survey_2024_RE-1.xml", content)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(content))
	assert.Equal(t, filepath.Join(dir, "2024", "amsf_survey_2024_RE-1.xml"), stored.Path)
	assert.Equal(t, hex.EncodeToString(sum[:]), stored.SHA256)
	assert.Equal(t, len(content), stored.Size)

	got, err := repo.ReadDocument(2024, "amsf_survey_2024_RE-1.xml")
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.True(t, repo.DocumentExists(2024, "amsf_survey_2024_RE-1.xml"))
}

func TestWriteDocumentReplaces(t *testing.T) {
	repo, _ := newRepository(t)

	_, err := repo.WriteDocument(2024, "a.xml", "first")
	require.NoError(t, err)
	_, err = repo.WriteDocument(2024, "a.xml", "second")
	require.NoError(t, err)

	got, err := repo.ReadDocument(2024, "a.xml")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	docs, err := repo.ListDocuments(2024)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.xml"}, docs, "no temporary files are left behind")
}

func TestReadMissingDocument(t *testing.T) {
	repo, _ := newRepository(t)

	got, err := repo.ReadDocument(2024, "missing.xml")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, repo.DocumentExists(2024, "missing.xml"))
}

func TestInvalidDocumentPaths(t *testing.T) {
	repo, _ := newRepository(t)

	_, err := repo.WriteDocument(24, "a.xml", "x")
	assert.Error(t, err)

	_, err = repo.WriteDocument(2024, "../a.xml", "x")
	assert.Error(t, err)

	_, err = repo.ReadDocument(2024, "")
	assert.Error(t, err)
	assert.False(t, repo.DocumentExists(2024, "sub/a.xml"))
}

func TestListDocumentsAndYears(t *testing.T) {
	repo, dir := newRepository(t)

	years, err := repo.ListYears()
	require.NoError(t, err)
	assert.Empty(t, years)

	for _, w := range []struct {
		year int
		name string
	}{
		{2024, "b.xml"},
		{2024, "a.xml"},
		{2023, "c.xml"},
	} {
		_, err := repo.WriteDocument(w.year, w.name, "x")
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024", "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".data"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "misc"), 0755))

	docs, err := repo.ListDocuments(2024)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.xml", "b.xml"}, docs)

	docs, err = repo.ListDocuments(2020)
	require.NoError(t, err)
	assert.Empty(t, docs)

	years, err = repo.ListYears()
	require.NoError(t, err)
	assert.Equal(t, []int{2023, 2024}, years)
}
