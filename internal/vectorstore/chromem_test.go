package vectorstore

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChromemStore(t *testing.T, mutate func(*Config)) (*ChromemStore, *wordEmbedder) {
	t.Helper()
	cfg := Config{PersistDir: t.TempDir(), Collection: "test_collection"}
	if mutate != nil {
		mutate(&cfg)
	}
	emb := newWordEmbedder()
	store, err := NewChromemStore(cfg, emb.embed, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, emb
}

func addDocs(t *testing.T, s Store, emb *wordEmbedder, docs ...document.Document) {
	t.Helper()
	require.NoError(t, s.AddDocuments(context.Background(), docs, emb.embedAll(docs)))
}

func TestNewChromemStore(t *testing.T) {
	store, _ := newTestChromemStore(t, nil)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.DirExists(t, store.PersistDir())
}

func TestNewChromemStore_InvalidConfig(t *testing.T) {
	emb := newWordEmbedder()

	tests := []struct {
		name  string
		cfg   Config
		embed EmbeddingFunc
	}{
		{name: "bad collection", cfg: Config{PersistDir: t.TempDir(), Collection: "Bad Name"}, embed: emb.embed},
		{name: "bad search type", cfg: Config{PersistDir: t.TempDir(), SearchType: "fuzzy"}, embed: emb.embed},
		{name: "nil embedder", cfg: Config{PersistDir: t.TempDir()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChromemStore(tt.cfg, tt.embed, nil, nil)
			requireKind(t, err, ErrInitialization)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewChromemStore_PersistDirIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := NewChromemStore(Config{PersistDir: path}, newWordEmbedder().embed, nil, nil)
	requireKind(t, err, ErrInitialization)
}

func TestChromemStore_SimilaritySearch(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)
	ctx := context.Background()

	addDocs(t, store, emb,
		textDoc(t, "solar", "Solar panels convert sunlight into electricity."),
		textDoc(t, "market", "The stock market fell."),
		textDoc(t, "cats", "Cats are popular pets."),
	)

	docs, err := store.SimilaritySearch(ctx, "solar panels sunlight", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "solar", docs[0].ID())

	text, ok := docs[0].(*document.TextDocument)
	require.True(t, ok, "got %T", docs[0])
	assert.Equal(t, "Solar panels convert sunlight into electricity.", text.Content())
	assert.Equal(t, "https://example.com/solar", text.SourceURL())
}

func TestChromemStore_SearchWithScores_Ordered(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)

	addDocs(t, store, emb,
		textDoc(t, "a", "solar energy panels"),
		textDoc(t, "b", "solar wind"),
		textDoc(t, "c", "stock market"),
	)

	results, err := store.SearchWithScores(context.Background(), "solar energy panels", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, ids(results))
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestChromemStore_EveryDocumentRetrievable(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)

	docs := []document.Document{
		textDoc(t, "t1", "solar energy"),
		textDoc(t, "t2", "stock market fell"),
		imageDoc(t, "i1", "robots and ai chips"),
		textDoc(t, "t3", "cats pets"),
	}
	addDocs(t, store, emb, docs...)

	for _, d := range docs {
		got, err := store.SimilaritySearch(context.Background(), d.Content(), 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, document.Equal(d, got[0]), "query %q returned %v", d.Content(), got[0])
	}
}

func TestChromemStore_KLargerThanCollection(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)
	addDocs(t, store, emb, textDoc(t, "a", "solar"), textDoc(t, "b", "wind"))

	results, err := store.SearchWithScores(context.Background(), "solar", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestChromemStore_EmptyCollection(t *testing.T) {
	store, _ := newTestChromemStore(t, nil)

	docs, err := store.SimilaritySearch(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestChromemStore_ImageDocumentRoundTrip(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)
	img := imageDoc(t, "img", "robots building chips")
	addDocs(t, store, emb, img)

	docs, err := store.SimilaritySearch(context.Background(), "robots chips", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	got, ok := docs[0].(*document.ImageDocument)
	require.True(t, ok, "got %T", docs[0])
	assert.Equal(t, img.ImageURL(), got.ImageURL())
	assert.Equal(t, img.SourceURL(), got.SourceURL())
	assert.Nil(t, got.Image())
}

func TestChromemStore_AddDocuments_Invalid(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)
	ctx := context.Background()
	doc := textDoc(t, "a", "solar")

	tests := []struct {
		name       string
		docs       []document.Document
		embeddings [][]float32
	}{
		{name: "length mismatch", docs: []document.Document{doc}, embeddings: [][]float32{emb.vector("a"), emb.vector("b")}},
		{name: "nil document", docs: []document.Document{nil}, embeddings: [][]float32{emb.vector("a")}},
		{name: "unregistered type", docs: []document.Document{&videoDocument{id: "v", content: "talk", duration: "1m"}}, embeddings: [][]float32{emb.vector("talk")}},
		{name: "empty embedding", docs: []document.Document{doc}, embeddings: [][]float32{{}}},
		{name: "ragged", docs: []document.Document{doc, textDoc(t, "b", "wind")}, embeddings: [][]float32{emb.vector("a"), {1, 2}}},
		{name: "nan", docs: []document.Document{doc}, embeddings: [][]float32{{float32(math.NaN()), 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.AddDocuments(ctx, tt.docs, tt.embeddings)
			requireKind(t, err, ErrDocumentAddition)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "invalid batches must not write anything")
}

func TestChromemStore_AddDocuments_DimensionMismatch(t *testing.T) {
	tests := []struct {
		name       string
		vectorSize int
		seed       bool
	}{
		{name: "configured vector size", vectorSize: testDim},
		{name: "stored vectors", seed: true},
		{name: "configured and stored", vectorSize: testDim, seed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, emb := newTestChromemStore(t, func(c *Config) { c.VectorSize = tt.vectorSize })
			want := 0
			if tt.seed {
				addDocs(t, store, emb, textDoc(t, "a", "solar"))
				want = 1
			}

			err := store.AddDocuments(ctx,
				[]document.Document{textDoc(t, "short", "wind")},
				[][]float32{{1, 0, 0, 0}})
			requireKind(t, err, ErrDocumentAddition)
			assert.ErrorIs(t, err, ErrInvalidInput)

			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, n)

			// The rejected batch leaves the store searchable and saveable.
			addDocs(t, store, emb, textDoc(t, "b", "wind"))
			docs, err := store.SimilaritySearch(ctx, "wind", 1)
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "b", docs[0].ID())
			require.NoError(t, store.Save(ctx))

			reopened, err := NewChromemStore(Config{
				PersistDir: store.PersistDir(),
				Collection: "test_collection",
				VectorSize: testDim,
			}, emb.embed, nil, nil)
			require.NoError(t, err)
			_ = reopened.Close()
		})
	}
}

func TestChromemStore_AddDocuments_EmptyBatch(t *testing.T) {
	store, _ := newTestChromemStore(t, nil)
	assert.NoError(t, store.AddDocuments(context.Background(), nil, nil))
}

func TestChromemStore_AddDocuments_Upsert(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)
	ctx := context.Background()

	addDocs(t, store, emb, textDoc(t, "x", "version one"))
	addDocs(t, store, emb, textDoc(t, "x", "version two"))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := store.SimilaritySearch(ctx, "version", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "version two", docs[0].Content())
}

func TestChromemStore_AddDocuments_DuplicateInBatch(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)
	ctx := context.Background()

	addDocs(t, store, emb, textDoc(t, "x", "version one"), textDoc(t, "x", "version two"))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := store.SimilaritySearch(ctx, "version", 1)
	require.NoError(t, err)
	assert.Equal(t, "version two", docs[0].Content())
}

func TestChromemStore_Search_Invalid(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)
	addDocs(t, store, emb, textDoc(t, "a", "solar"))
	ctx := context.Background()

	for _, k := range []int{0, -1} {
		_, err := store.SimilaritySearch(ctx, "solar", k)
		requireKind(t, err, ErrSimilaritySearch)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	_, err := store.SimilaritySearch(ctx, "", 1)
	requireKind(t, err, ErrSimilaritySearch)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChromemStore_Search_EmbedderFails(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)
	addDocs(t, store, emb, textDoc(t, "a", "solar"))

	boom := errors.New("model unavailable")
	emb.err = boom

	_, err := store.SimilaritySearch(context.Background(), "solar", 1)
	requireKind(t, err, ErrSimilaritySearch)
	assert.ErrorIs(t, err, boom)
}

func TestChromemStore_Search_DimensionMismatch(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)
	addDocs(t, store, emb, textDoc(t, "a", "solar"))

	emb.dim = 8
	_, err := store.SimilaritySearch(context.Background(), "solar", 1)
	requireKind(t, err, ErrSimilaritySearch)
}

func TestChromemStore_Clean(t *testing.T) {
	store, emb := newTestChromemStore(t, nil)
	ctx := context.Background()
	addDocs(t, store, emb, textDoc(t, "a", "solar"), textDoc(t, "b", "wind"))

	require.NoError(t, store.Clean(ctx))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	docs, err := store.SimilaritySearch(ctx, "solar", 2)
	require.NoError(t, err)
	assert.Empty(t, docs)

	// The store stays usable.
	addDocs(t, store, emb, textDoc(t, "c", "cats"))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChromemStore_Clean_RemovesCheckpoint(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "gzip"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, emb := newTestChromemStore(t, func(c *Config) { c.Compress = compress })
			addDocs(t, store, emb, textDoc(t, "a", "solar"), textDoc(t, "b", "wind"))
			require.NoError(t, store.Save(ctx))
			assert.FileExists(t, checkpointPath(store.PersistDir(), "test_collection", compress))

			require.NoError(t, store.Clean(ctx))
			assert.NoFileExists(t, checkpointPath(store.PersistDir(), "test_collection", false))
			assert.NoFileExists(t, checkpointPath(store.PersistDir(), "test_collection", true))
			require.NoError(t, store.Close())

			reopened, err := NewChromemStore(Config{
				PersistDir: store.PersistDir(),
				Collection: "test_collection",
				Compress:   compress,
			}, emb.embed, nil, nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = reopened.Close() })

			n, err := reopened.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			docs, err := reopened.SimilaritySearch(ctx, "solar", 2)
			require.NoError(t, err)
			assert.Empty(t, docs)
		})
	}
}

func TestChromemStore_SaveAndReopen(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "gzip"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, emb := newTestChromemStore(t, func(c *Config) { c.Compress = compress })
			addDocs(t, store, emb,
				textDoc(t, "a", "solar energy"),
				imageDoc(t, "i", "robots"),
			)
			before, err := store.SearchWithScores(ctx, "solar", 2)
			require.NoError(t, err)

			require.NoError(t, store.Save(ctx))
			// Saving twice leaves the same checkpoint.
			require.NoError(t, store.Save(ctx))
			assert.FileExists(t, checkpointPath(store.PersistDir(), "test_collection", compress))
			assert.NoFileExists(t, checkpointPath(store.PersistDir(), "test_collection", !compress))

			reopened, err := NewChromemStore(Config{
				PersistDir: store.PersistDir(),
				Collection: "test_collection",
				Compress:   compress,
			}, emb.embed, nil, nil)
			require.NoError(t, err)
			defer reopened.Close()

			n, err := reopened.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			after, err := reopened.SearchWithScores(ctx, "solar", 2)
			require.NoError(t, err)
			assert.Equal(t, ids(before), ids(after))
			for i := range before {
				assert.True(t, document.Equal(before[i].Document, after[i].Document))
			}
		})
	}
}

func TestChromemStore_Save_SwitchCompression(t *testing.T) {
	ctx := context.Background()
	store, emb := newTestChromemStore(t, nil)
	addDocs(t, store, emb, textDoc(t, "a", "solar"))
	require.NoError(t, store.Save(ctx))

	// A compressed store picks up the plain checkpoint and replaces it.
	gz, err := NewChromemStore(Config{PersistDir: store.PersistDir(), Collection: "test_collection", Compress: true}, emb.embed, nil, nil)
	require.NoError(t, err)
	defer gz.Close()

	n, err := gz.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, gz.Save(ctx))
	assert.FileExists(t, checkpointPath(store.PersistDir(), "test_collection", true))
	assert.NoFileExists(t, checkpointPath(store.PersistDir(), "test_collection", false))
}

func TestChromemStore_Load(t *testing.T) {
	ctx := context.Background()

	source, emb := newTestChromemStore(t, nil)
	addDocs(t, source, emb, textDoc(t, "a", "solar"), textDoc(t, "b", "wind"))
	require.NoError(t, source.Save(ctx))

	target, _ := newTestChromemStore(t, nil)
	addDocs(t, target, emb, textDoc(t, "z", "cats"))

	require.NoError(t, target.Load(ctx, source.PersistDir()))

	n, err := target.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, source.PersistDir(), target.PersistDir())

	docs, err := target.SimilaritySearch(ctx, "wind", 1)
	require.NoError(t, err)
	assert.Equal(t, "b", docs[0].ID())
}

func TestChromemStore_Load_FailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store, emb := newTestChromemStore(t, nil)
	addDocs(t, store, emb, textDoc(t, "a", "solar"))
	dir := store.PersistDir()

	err := store.Load(ctx, filepath.Join(t.TempDir(), "missing"))
	requireKind(t, err, ErrLoading)

	err = store.Load(ctx, "")
	requireKind(t, err, ErrLoading)
	assert.ErrorIs(t, err, ErrInvalidInput)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, dir, store.PersistDir())
}

func TestChromemStore_Load_CorruptCheckpoint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(checkpointPath(dir, "test_collection", false), []byte("not a gob"), 0o600))

	store, emb := newTestChromemStore(t, nil)
	addDocs(t, store, emb, textDoc(t, "a", "solar"))

	err := store.Load(ctx, dir)
	requireKind(t, err, ErrLoading)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChromemStore_ReopenWithDifferentVectorSize(t *testing.T) {
	ctx := context.Background()
	store, emb := newTestChromemStore(t, nil)
	addDocs(t, store, emb, textDoc(t, "a", "solar"))
	require.NoError(t, store.Save(ctx))

	_, err := NewChromemStore(Config{
		PersistDir: store.PersistDir(),
		Collection: "test_collection",
		VectorSize: testDim * 2,
	}, emb.embed, nil, nil)
	requireKind(t, err, ErrInitialization)

	ok, err := NewChromemStore(Config{
		PersistDir: store.PersistDir(),
		Collection: "test_collection",
		VectorSize: testDim,
	}, emb.embed, nil, nil)
	require.NoError(t, err)
	_ = ok.Close()
}

func TestChromemStore_AddSupportedDocument(t *testing.T) {
	ctx := context.Background()
	store, emb := newTestChromemStore(t, nil)

	require.NoError(t, store.AddSupportedDocument(&videoDocument{}, videoConverter))

	video := &videoDocument{id: "v1", content: "a talk about ai", duration: "90s"}
	addDocs(t, store, emb, video, textDoc(t, "t", "stock market"))

	docs, err := store.SimilaritySearch(ctx, "ai talk", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	got, ok := docs[0].(*videoDocument)
	require.True(t, ok, "got %T", docs[0])
	assert.Equal(t, "90s", got.duration)

	err = store.AddSupportedDocument(&videoDocument{}, videoConverter)
	requireKind(t, err, ErrDocumentAddition)
	assert.ErrorIs(t, err, document.ErrTypeAlreadyRegistered)

	err = store.AddSupportedDocument(nil, videoConverter)
	assert.ErrorIs(t, err, document.ErrInvalidDocumentType)
}

func TestChromemStore_UnknownDocumentType(t *testing.T) {
	ctx := context.Background()
	store, emb := newTestChromemStore(t, nil)
	require.NoError(t, store.AddSupportedDocument(&videoDocument{}, videoConverter))
	addDocs(t, store, emb, &videoDocument{id: "v1", content: "talk", duration: "90s"})
	require.NoError(t, store.Save(ctx))

	// A store that never registered the video type cannot rebuild the row.
	plain, err := NewChromemStore(Config{PersistDir: store.PersistDir(), Collection: "test_collection"}, emb.embed, nil, nil)
	require.NoError(t, err)
	defer plain.Close()

	_, err = plain.SimilaritySearch(ctx, "talk", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrUnknownDocumentType)
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, document.ErrUnknownDocumentType, opErr.Kind)
}

func TestChromemStore_MMR(t *testing.T) {
	docs := func(t *testing.T) []document.Document {
		return []document.Document{
			textDoc(t, "a", "solar energy panels"),
			textDoc(t, "b", "solar energy panels roof"),
			textDoc(t, "c", "solar wind power"),
		}
	}
	ctx := context.Background()

	plain, emb := newTestChromemStore(t, nil)
	addDocs(t, plain, emb, docs(t)...)
	results, err := plain.SearchWithScores(ctx, "solar energy", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(results))

	mmr, emb := newTestChromemStore(t, func(c *Config) { c.SearchType = SearchMMR })
	addDocs(t, mmr, emb, docs(t)...)
	results, err = mmr.SearchWithScores(ctx, "solar energy", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(results))

	// Scores stay first-stage similarities.
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestChromemStore_Closed(t *testing.T) {
	ctx := context.Background()
	store, emb := newTestChromemStore(t, nil)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	err := store.AddDocuments(ctx, []document.Document{textDoc(t, "a", "solar")}, [][]float32{emb.vector("solar")})
	requireKind(t, err, ErrDocumentAddition)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = store.SimilaritySearch(ctx, "solar", 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Clean(ctx), ErrClosed)
	assert.ErrorIs(t, store.Save(ctx), ErrClosed)
	assert.ErrorIs(t, store.Load(ctx, t.TempDir()), ErrClosed)

	_, err = store.Count(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
