package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"assignmenthelper/api/internal/cache"
	"assignmenthelper/api/internal/embedding"
	"assignmenthelper/api/internal/loader"
	"assignmenthelper/api/internal/search"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	loadConcurrency int
	loadCachePath   string
)

var loadCmd = &cobra.Command{
	Use:   "load [globs...]",
	Short: "Embed and store sources from JSON or YAML files",
	Long: `Load reads arrays of sources from JSON or YAML files, embeds "title abstract"
for each one and stores it. Sources that fail are reported and skipped.

Each entry may have: title (required), authors, publication_year, abstract,
full_text, source_type (default "paper") and url.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().IntVarP(&loadConcurrency, "concurrency", "c", loader.DefaultConcurrency, "parallel embedding requests")
	loadCmd.Flags().StringVar(&loadCachePath, "cache", filepath.Join(".cache", "embeddings.db"), "embedding cache file (empty disables)")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	files, err := loader.ExpandGlobs(args)
	if err != nil {
		return err
	}
	entries, err := loader.ReadFiles(files)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loading %d academic sources from %d file(s)...\n", len(entries), len(files))

	openAI, err := embedding.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)
	if err != nil {
		return err
	}
	var embedder embedding.Embedder = openAI
	if strings.TrimSpace(loadCachePath) != "" {
		if err := os.MkdirAll(filepath.Dir(loadCachePath), 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
		vectors, err := cache.NewBoltStore(loadCachePath)
		if err != nil {
			return fmt.Errorf("open embedding cache: %w", err)
		}
		defer vectors.Close()
		embedder = embedding.NewCached(openAI, vectors, openAI.Model(), log.With("component", "embedding"))
	}

	sources, closeDB, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	load := loader.New(sources, embedder, cfg.VectorDimension, loadConcurrency, log.With("component", "loader"))
	report, loadErr := load.Load(ctx, entries, func() { _ = bar.Add(1) })
	_ = bar.Finish()

	for _, failure := range report.Failures {
		fmt.Fprintf(out, "✗ Error loading source %d (%s): %v\n", failure.Index, failure.Title, failure.Err)
	}
	if loadErr != nil {
		return loadErr
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log.With("component", "meilisearch"))
		defer meiliClient.Close()
		indexer := search.NewService(nil, nil, nil, meiliClient, search.Options{}, log)
		if err := indexer.IndexSources(report.Loaded); err != nil {
			log.Warn("lookup index not updated", "error", err)
		}
	}

	fmt.Fprintf(out, "✓ Loaded %d of %d academic sources\n", len(report.Loaded), len(entries))
	return nil
}
