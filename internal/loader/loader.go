package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"assignmenthelper/api/internal/embedding"
	"assignmenthelper/api/internal/logger"
	"assignmenthelper/api/internal/store"

	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

var ErrNothingLoaded = errors.New("no sources were loaded")

// SourceStore persists sources.
type SourceStore interface {
	InsertSource(ctx context.Context, source store.AcademicSource) (store.AcademicSource, error)
}

type Failure struct {
	Index int
	Title string
	Err   error
}

type Report struct {
	Loaded   []store.AcademicSource
	Failures []Failure
}

type Loader struct {
	sources     SourceStore
	embedder    embedding.Embedder
	dimension   int
	concurrency int
	log         *logger.Logger
}

// New builds a loader. dimension 0 skips the length check.
func New(sources SourceStore, embedder embedding.Embedder, dimension, concurrency int, log *logger.Logger) *Loader {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{
		sources:     sources,
		embedder:    embedder,
		dimension:   dimension,
		concurrency: concurrency,
		log:         log,
	}
}

// Load embeds and stores each entry. A failing entry is recorded in the report
// and skipped; Load fails only when nothing was stored or ctx is cancelled.
// progress, if set, is called once per finished entry.
func (l *Loader) Load(ctx context.Context, entries []Entry, progress func()) (Report, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	var (
		mu       sync.Mutex
		loaded   = make([]*store.AcademicSource, len(entries))
		failures []Failure
	)

	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			source, err := l.loadOne(gctx, entry)

			mu.Lock()
			if err != nil {
				failures = append(failures, Failure{Index: i + 1, Title: entry.Title, Err: err})
			} else {
				loaded[i] = &source
			}
			mu.Unlock()

			if err != nil {
				l.log.Warn("source skipped", "index", i+1, "title", entry.Title, "error", err)
			}
			if progress != nil {
				progress()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Failures: failures}
	for _, source := range loaded {
		if source != nil {
			report.Loaded = append(report.Loaded, *source)
		}
	}
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Index < report.Failures[j].Index })
	if len(report.Loaded) == 0 && len(entries) > 0 {
		return report, ErrNothingLoaded
	}
	return report, nil
}

func (l *Loader) loadOne(ctx context.Context, entry Entry) (store.AcademicSource, error) {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		return store.AcademicSource{}, errors.New("title is required")
	}

	vector, err := l.embedder.Embed(ctx, entry.EmbeddingText())
	if err != nil {
		return store.AcademicSource{}, err
	}
	if l.dimension > 0 && len(vector) != l.dimension {
		return store.AcademicSource{}, fmt.Errorf("embedding has %d dimensions, expected %d", len(vector), l.dimension)
	}

	source, err := l.sources.InsertSource(ctx, store.AcademicSource{
		Title:           title,
		Authors:         entry.Authors,
		PublicationYear: entry.PublicationYear,
		Abstract:        entry.Abstract,
		FullText:        entry.FullText,
		SourceType:      entry.SourceType,
		URL:             entry.URL,
		Embedding:       vector,
	})
	if err != nil {
		return store.AcademicSource{}, fmt.Errorf("insert source: %w", err)
	}
	return source, nil
}
