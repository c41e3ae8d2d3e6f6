package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/imagestore"
)

// cleanCmd empties the collection
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every document from the vector store",
	Long: `Remove every document from the vector store and save the empty
collection. The image document file is reset as well.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
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

	if err := orch.CleanVectorStore(ctx); err != nil {
		return err
	}
	if err := a.store.Save(ctx); err != nil {
		return err
	}
	if path := a.cfg.Ingest.ImageStore; path != "" {
		if err := imagestore.Save(path, nil); err != nil {
			return err
		}
	}

	a.logger.Info(ctx, "vector store cleaned", zap.String("collection", a.cfg.VectorStore.Collection))
	cmd.Printf("Cleaned collection %q\n", a.cfg.VectorStore.Collection)
	return nil
}
