package upload

import (
	"bytes"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildMultipartForm(t *testing.T, field, filename string, content []byte) *multipart.Form {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(10 << 20)
	require.NoError(t, err)
	return form
}

func TestSaveStoresFileUnderFieldDirectory(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	form := buildMultipartForm(t, "img", "cat.png", []byte("fake-image-bytes"))
	saved, err := sink.Save("img", form.File["img"])
	require.NoError(t, err)
	require.Len(t, saved, 1)

	assert.Equal(t, "cat.png", saved[0].Filename)
	assert.Equal(t, "img", saved[0].Type)
	assert.Equal(t, ".png", filepath.Ext(saved[0].SavedFilename))

	stored, err := os.ReadFile(filepath.Join(dir, "images", saved[0].SavedFilename))
	require.NoError(t, err)
	assert.Equal(t, "fake-image-bytes", string(stored))
}

func TestSaveRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	form := buildMultipartForm(t, "unknown", "x.bin", []byte("data"))
	_, err = sink.Save("unknown", form.File["unknown"])
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestSaveProducesDistinctNamesForSameOriginalFilename(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	form1 := buildMultipartForm(t, "file", "dup.txt", []byte("one"))
	saved1, err := sink.Save("file", form1.File["file"])
	require.NoError(t, err)

	form2 := buildMultipartForm(t, "file", "dup.txt", []byte("two"))
	saved2, err := sink.Save("file", form2.File["file"])
	require.NoError(t, err)

	assert.NotEqual(t, saved1[0].SavedFilename, saved2[0].SavedFilename)
}
