package imagestore

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(2, 1, color.NRGBA{G: 128, B: 64, A: 200})
	return img
}

func imageDoc(t *testing.T, id, caption string, img image.Image) *document.ImageDocument {
	t.Helper()
	doc, err := document.NewImageDocument(id, caption, "https://news.example.com/issue-1", "https://img.example.com/"+id+".png", img)
	require.NoError(t, err)
	return doc
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "images.json")
	docs := map[string]*document.ImageDocument{
		"img-1": imageDoc(t, "img-1", "A GPU on a desk.", testImage()),
		"img-2": imageDoc(t, "img-2", "A missing picture.", nil),
	}

	require.NoError(t, Save(path, docs))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, []string{"img-1", "img-2"}, IDs(loaded))

	for id, want := range docs {
		got := loaded[id]
		require.NotNil(t, got, id)
		assert.Equal(t, want.Metadata(), got.Metadata(), id)
	}

	got := loaded["img-1"].Image()
	require.NotNil(t, got)
	assert.Equal(t, testImage().Bounds(), got.Bounds())
	r, g, b, a := got.At(2, 1).RGBA()
	wr, wg, wb, wa := testImage().At(2, 1).RGBA()
	assert.Equal(t, []uint32{wr, wg, wb, wa}, []uint32{r, g, b, a})

	assert.Nil(t, loaded["img-2"].Image())
}

func TestSave_NullImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.json")
	require.NoError(t, Save(path, map[string]*document.ImageDocument{
		"x": imageDoc(t, "x", "caption", nil),
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"image_base64": null`)
	assert.Contains(t, string(data), `"type": "image"`)
}

func TestSave_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.json")
	require.NoError(t, Save(path, map[string]*document.ImageDocument{"a": imageDoc(t, "a", "first", nil)}))
	require.NoError(t, Save(path, map[string]*document.ImageDocument{"b": imageDoc(t, "b", "second", nil)}))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, IDs(loaded))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSave_Errors(t *testing.T) {
	assert.ErrorIs(t, Save("", nil), ErrSaving)
	assert.ErrorIs(t, Save(filepath.Join(t.TempDir(), "x.json"), map[string]*document.ImageDocument{"nil": nil}), ErrSaving)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrLoading)

	tests := map[string]string{
		"bad json":   `{"a": `,
		"bad base64": `{"a": {"id": "a", "type": "image", "content": "c", "source_url": "s", "image_url": "i", "image_base64": "%%%"}}`,
		"not png":    `{"a": {"id": "a", "type": "image", "content": "c", "source_url": "s", "image_url": "i", "image_base64": "aGVsbG8="}}`,
		"wrong type": `{"a": {"id": "a", "type": "text", "content": "c", "source_url": "s", "image_url": "i", "image_base64": null}}`,
		"no id":      `{"a": {"type": "image", "content": "c", "source_url": "s", "image_url": "i", "image_base64": null}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrLoading)
		})
	}
}

func TestAttach(t *testing.T) {
	stored := map[string]*document.ImageDocument{
		"a": imageDoc(t, "a", "caption a", testImage()),
		"b": imageDoc(t, "b", "caption b", nil),
	}
	retrieved := []*document.ImageDocument{
		imageDoc(t, "a", "caption a", nil),
		imageDoc(t, "b", "caption b", nil),
		imageDoc(t, "c", "caption c", nil),
	}

	out := Attach(retrieved, stored)
	require.Len(t, out, 3)
	assert.NotNil(t, out[0].Image())
	assert.Nil(t, out[1].Image())
	assert.Nil(t, out[2].Image())
	assert.Nil(t, retrieved[0].Image())
}

func TestEncodeBase64(t *testing.T) {
	encoded, err := EncodeBase64(testImage())
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, testImage().Bounds(), decoded.Bounds())
	assert.Equal(t, testImage().At(2, 1), decoded.At(2, 1))
}
