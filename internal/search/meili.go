package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"assignmenthelper/api/internal/logger"
	meili "github.com/meilisearch/meilisearch-go"
)

const idxSources = "academic_sources"

// Meili serves catalogue lookups from a Meilisearch index.
type Meili struct {
	client  meili.ServiceManager
	log     *logger.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the sources index.
// An unreachable server is not an error; lookups fall back until it recovers.
func NewMeili(url, apiKey string, log *logger.Logger) *Meili {
	if log == nil {
		log = logger.Nop()
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		log:    log,
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		log.Warn("meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxSources,
		PrimaryKey: "id",
	}); err != nil {
		m.log.Debug("create index (may already exist)", "index", idxSources, "error", err)
	}

	index := m.client.Index(idxSources)
	filterable := []interface{}{"sourceType", "publicationYear"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.log.Warn("update filterable attributes", "index", idxSources, "error", err)
	}
	searchable := []string{"title", "authors", "abstract"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.log.Warn("update searchable attributes", "index", idxSources, "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Lookup runs a typo-tolerant query over title, authors and abstract.
func (m *Meili) Lookup(q string, limit int) ([]Summary, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID: idxSources,
			Query:    q,
			Limit:    int64(limit),
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Summary, 0)
	for _, sr := range resp.Results {
		for _, hit := range sr.Hits {
			results = append(results, hitToSummary(hit))
		}
	}
	return results, nil
}

func hitToSummary(hit meili.Hit) Summary {
	summary := Summary{
		ID:         decodeInt(hit, "id"),
		Title:      decodeString(hit, "title"),
		Authors:    optional(strings.TrimSpace(decodeString(hit, "authors"))),
		SourceType: decodeString(hit, "sourceType"),
		URL:        optional(strings.TrimSpace(decodeString(hit, "url"))),
	}
	if year := int(decodeInt(hit, "publicationYear")); year != 0 {
		summary.PublicationYear = &year
	}
	if summary.SourceType == "" {
		summary.SourceType = "paper"
	}
	return summary
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt(hit meili.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}

// IndexSources bulk-indexes source records.
func (m *Meili) IndexSources(records []SourceRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxSources).AddDocuments(records, nil)
	return err
}
