package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/config"
	"github.com/fyrsmithlabs/newsrag/internal/embeddings"
	"github.com/fyrsmithlabs/newsrag/internal/ingest"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/fetch"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/parse"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/preprocess"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/rag"
)

var (
	ingestURLsFile  string
	ingestCreate    bool
	ingestNoImages  bool
	ingestSkipFails bool
)

func init() {
	ingestCmd.Flags().StringVar(&ingestURLsFile, "urls", "", "file with one article URL per line (default: ingest.urls_file)")
	ingestCmd.Flags().BoolVar(&ingestCreate, "create", false, "rebuild the store from the URLs instead of using the saved one")
	ingestCmd.Flags().BoolVar(&ingestNoImages, "no-images", false, "skip image loading and captioning")
	ingestCmd.Flags().BoolVar(&ingestSkipFails, "skip-failed", false, "skip pages that fail to load instead of aborting")
}

// ingestCmd builds or loads the vector store
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the vector store from news article URLs",
	Long: `Build the vector store from news article URLs, or report on the saved one.

With --create (or ingest.create in the config) the collection is emptied and
every URL is fetched, parsed, split, captioned and embedded. Without it the
saved store is opened and its size reported.

Examples:
  # Build from a URL list
  newsrag ingest --create --urls urls.txt

  # Text only, tolerate broken pages
  newsrag ingest --create --urls urls.txt --no-images --skip-failed`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if err := a.openStore(); err != nil {
		return err
	}

	if !ingestCreate && !a.cfg.Ingest.Create {
		count, err := a.store.Count(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("Loaded collection %q with %d documents\n", a.cfg.VectorStore.Collection, count)
		if count == 0 {
			cmd.Println("The store is empty; run with --create to build it.")
		}
		return nil
	}

	urlsFile := ingestURLsFile
	if urlsFile == "" {
		urlsFile = a.cfg.Ingest.URLsFile
	}
	if urlsFile == "" {
		return fmt.Errorf("no URL list: pass --urls or set ingest.urls_file")
	}
	if urlsFile, err = config.ExpandPath(urlsFile); err != nil {
		return err
	}
	urls, err := ingest.ReadURLs(urlsFile)
	if err != nil {
		return err
	}

	pipeline, err := newPipeline(a, !ingestNoImages)
	if err != nil {
		return err
	}

	if err := a.store.Clean(ctx); err != nil {
		return err
	}
	report, err := pipeline.Build(ctx, urls)
	if err != nil {
		a.logger.Error(ctx, "ingestion failed", zap.Error(err))
		return err
	}

	cmd.Printf("Ingested %d pages (%d failed): %d text chunks, %d images, %d stored\n",
		report.Pages, len(report.FailedPages), report.TextDocuments, report.ImageDocuments, report.StoredCount)
	for _, u := range report.FailedPages {
		cmd.Printf("  failed: %s\n", u)
	}
	return nil
}

// newPipeline wires fetch, parse, preprocess and embedding from the config.
func newPipeline(a *app, withImages bool) (*ingest.Pipeline, error) {
	cfg := a.cfg
	logger := a.logger

	fetcher, err := fetch.NewHTTPFetcher(
		fetch.WithTimeout(cfg.Fetch.Timeout.Duration()),
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithRateLimit(cfg.Fetch.Rate, cfg.Fetch.Burst),
		fetch.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	loader, err := ingest.NewLoader(fetcher, parse.NewGoqueryParser(logger), parse.NewsArticleConfig(), logger)
	if err != nil {
		return nil, err
	}

	splitter, err := preprocess.NewRecursiveSplitter(cfg.Splitter.ChunkSize, cfg.Splitter.ChunkOverlap, nil)
	if err != nil {
		return nil, err
	}

	var (
		imageLoader preprocess.ImageLoader
		describer   preprocess.ImageDescriber
	)
	if withImages {
		imageLoader, describer, err = newImageStages(cfg, fetcher, logger)
		if err != nil {
			return nil, err
		}
	}

	pre, err := preprocess.NewPreprocessor(preprocess.NewSimpleTextExtractor(), splitter, imageLoader, describer, logger)
	if err != nil {
		return nil, err
	}

	encoder, err := embeddings.NewTextEncoder(a.provider)
	if err != nil {
		return nil, err
	}

	return ingest.NewPipeline(ingest.Config{
		Loader:          loader,
		Preprocessor:    pre,
		Encoder:         encoder,
		Store:           a.store,
		ImageStorePath:  cfg.Ingest.ImageStore,
		SkipFailedPages: ingestSkipFails,
		Logger:          logger,
	})
}

func newImageStages(cfg *config.Config, fetcher fetch.Fetcher, logger *logging.Logger) (preprocess.ImageLoader, preprocess.ImageDescriber, error) {
	imageLoader, err := preprocess.NewHTTPImageLoader(fetcher, preprocess.WithImageLoaderLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	vision, err := rag.NewOllamaModel(cfg.LLM.ServerURL, cfg.LLM.VisionModel)
	if err != nil {
		return nil, nil, err
	}
	describer, err := preprocess.NewLLMDescriber(vision, preprocess.WithDescriberLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return imageLoader, describer, nil
}
