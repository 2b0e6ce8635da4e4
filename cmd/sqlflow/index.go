package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nexxia-ai/sqlflow/retrieval"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the reference documentation index",
	}
	cmd.AddCommand(newIndexBuildCmd())
	return cmd
}

func newIndexBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build <file>...",
		Short: "Chunk, embed and index reference documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embedder, err := retrieval.NewGenAIEmbedder(cmd.Context(), os.Getenv("GOOGLE_API_KEY"), cfg.EmbeddingModel)
			if err != nil {
				return err
			}

			splitter := retrieval.NewSplitter()
			index := retrieval.NewMemoryIndex(embedder)

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}

				var docs []retrieval.Document
				for _, chunk := range splitter.Split(string(data)) {
					docs = append(docs, retrieval.Document{
						Content:  chunk,
						Metadata: map[string]string{"source": filepath.Base(path)},
					})
				}
				if err := index.Add(cmd.Context(), docs); err != nil {
					return fmt.Errorf("failed to index %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %s (%d chunks)\n", path, len(docs))
			}

			out := filepath.Join(cfg.DataDir, indexFile)
			if err := index.Save(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d chunks to %s\n", index.Len(), out)
			return nil
		},
	}
}
