package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/fyrsmithlabs/newsrag/internal/imagestore"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/rag"
)

// fallbackAnswer is shown instead of internal errors.
const fallbackAnswer = "Something went wrong while generating answer. Please try again."

var queryK int

func init() {
	queryCmd.Flags().IntVarP(&queryK, "top-k", "k", rag.DefaultK, "number of documents to retrieve")
	chatCmd.Flags().IntVarP(&queryK, "top-k", "k", rag.DefaultK, "number of documents to retrieve")
}

// queryCmd answers a single question
var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from the ingested news",
	Long: `Answer a question from the ingested news articles.

Prints the answer, the articles it drew on and any related images.

Examples:
  newsrag query "What did the latest issue say about solar panels?"
  newsrag query -k 8 "Which labs released new models?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

// answerer is the slice of rag.Orchestrator the query commands use.
type answerer interface {
	Query(ctx context.Context, userQuery string, k int) (*rag.Response, error)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if err := a.openStore(); err != nil {
		return err
	}
	orch, err := a.newOrchestrator()
	if err != nil {
		return err
	}

	images := loadImageStore(ctx, a.cfg.Ingest.ImageStore, a.logger)
	answer(ctx, cmd.OutOrStdout(), orch, strings.Join(args, " "), queryK, images, a.logger)
	return nil
}

// answer runs one query and prints the result, or the fallback message when
// the query fails. Details of a failure only go to the log.
func answer(ctx context.Context, out io.Writer, a answerer, question string, k int, images map[string]*document.ImageDocument, logger *logging.Logger) bool {
	resp, err := a.Query(ctx, question, k)
	if err != nil {
		logger.Error(ctx, "query failed", zap.String("query", question), zap.Error(err))
		fmt.Fprintln(out, fallbackAnswer)
		return false
	}
	printResponse(out, resp, images)
	return true
}

func printResponse(out io.Writer, resp *rag.Response, images map[string]*document.ImageDocument) {
	fmt.Fprintln(out, resp.TextResponse())

	if sources := resp.Sources(); len(sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, s := range sources {
			fmt.Fprintf(out, "  %s\n", s)
		}
	}

	if imgs := imagestore.Attach(resp.Images(), images); len(imgs) > 0 {
		fmt.Fprintln(out, "\nImages:")
		for _, img := range imgs {
			fmt.Fprintf(out, "  %s\n", img.ImageURL())
			if payload := img.Image(); payload != nil {
				b := payload.Bounds()
				fmt.Fprintf(out, "    %dx%d, %s\n", b.Dx(), b.Dy(), img.Content())
			} else {
				fmt.Fprintf(out, "    %s\n", img.Content())
			}
		}
	}
}

// loadImageStore returns the saved image documents, or nil when none have
// been saved yet or the file cannot be read.
func loadImageStore(ctx context.Context, path string, logger *logging.Logger) map[string]*document.ImageDocument {
	if path == "" {
		return nil
	}
	images, err := imagestore.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn(ctx, "failed to load image documents", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	logger.Debug(ctx, "loaded image documents", zap.Int("count", len(images)))
	return images
}
