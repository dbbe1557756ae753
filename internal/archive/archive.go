// Package archive keeps the history of finished cycles and a full-text index
// over them.
package archive

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/mindloop/models"
)

// Archive is the ordered history of archived cycles. Cycles are deep-copied
// on the way in and out, so callers never share state with the archive.
type Archive struct {
	mu     sync.RWMutex
	cycles []*models.Cycle
	byID   map[string]int
	index  bleve.Index
}

// Hit is a search result.
type Hit struct {
	ID     string  `json:"id"`
	Number int     `json:"number"`
	Topic  string  `json:"topic"`
	Score  float64 `json:"score"`
}

// document is what gets indexed per cycle.
type document struct {
	Topic     string `json:"topic"`
	Thoughts  string `json:"thoughts"`
	Comments  string `json:"comments"`
	Synthesis string `json:"synthesis"`
	Status    string `json:"status"`
}

func New() (*Archive, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create archive index: %w", err)
	}
	return &Archive{byID: make(map[string]int), index: index}, nil
}

// Put archives a snapshot of c. A cycle id already in the history is
// replaced in place so each id maps to one entry.
func (a *Archive) Put(c *models.Cycle) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("archive: cycle without id")
	}
	cp := c.Clone()
	a.mu.Lock()
	defer a.mu.Unlock()
	if i, ok := a.byID[cp.ID]; ok {
		a.cycles[i] = cp
	} else {
		a.byID[cp.ID] = len(a.cycles)
		a.cycles = append(a.cycles, cp)
	}
	return a.index.Index(cp.ID, toDocument(cp))
}

// Contains reports whether id has been archived.
func (a *Archive) Contains(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.byID[id]
	return ok
}

func (a *Archive) Get(id string) (*models.Cycle, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.byID[id]
	if !ok {
		return nil, models.ErrCycleNotFound
	}
	return a.cycles[i].Clone(), nil
}

// List returns every archived cycle in archive order.
func (a *Archive) List() []*models.Cycle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*models.Cycle, len(a.cycles))
	for i, c := range a.cycles {
		out[i] = c.Clone()
	}
	return out
}

func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cycles)
}

// NextNumber returns the display number for a new cycle: one past the
// highest archived number.
func (a *Archive) NextNumber() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := len(a.cycles)
	for _, c := range a.cycles {
		if c.Number > n {
			n = c.Number
		}
	}
	return n + 1
}

// Restore replaces the history with cycles and rebuilds the index.
func (a *Archive) Restore(cycles []*models.Cycle) error {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("create archive index: %w", err)
	}
	restored := make([]*models.Cycle, 0, len(cycles))
	byID := make(map[string]int, len(cycles))
	batch := index.NewBatch()
	for _, c := range cycles {
		if c == nil || c.ID == "" {
			continue
		}
		cp := c.Clone()
		if i, ok := byID[cp.ID]; ok {
			restored[i] = cp
		} else {
			byID[cp.ID] = len(restored)
			restored = append(restored, cp)
		}
		if err := batch.Index(cp.ID, toDocument(cp)); err != nil {
			return fmt.Errorf("index cycle %s: %w", cp.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return fmt.Errorf("index archive: %w", err)
	}

	a.mu.Lock()
	old := a.index
	a.cycles, a.byID, a.index = restored, byID, index
	a.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Search runs a query string query over topics, thoughts, comments and
// syntheses. Hits are ordered by score.
func (a *Archive) Search(query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), limit, 0, false)

	a.mu.RLock()
	defer a.mu.RUnlock()
	res, err := a.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search archive: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		i, ok := a.byID[h.ID]
		if !ok {
			continue
		}
		c := a.cycles[i]
		hits = append(hits, Hit{ID: c.ID, Number: c.Number, Topic: c.Topic, Score: h.Score})
	}
	return hits, nil
}

func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.index == nil {
		return nil
	}
	err := a.index.Close()
	a.index = nil
	return err
}

func toDocument(c *models.Cycle) document {
	var thoughts, comments strings.Builder
	for _, item := range c.Thoughts {
		switch v := item.(type) {
		case models.AgentThought:
			thoughts.WriteString(v.Reasoning)
			thoughts.WriteString("\n")
			thoughts.WriteString(v.Essence)
			thoughts.WriteString("\n")
		case models.UserComment:
			comments.WriteString(v.Content)
			comments.WriteString("\n")
		}
	}
	topic := c.Topic
	if c.OriginalTopic != "" && c.OriginalTopic != c.Topic {
		topic = c.OriginalTopic + "\n" + c.Topic
	}
	return document{
		Topic:     topic,
		Thoughts:  thoughts.String(),
		Comments:  comments.String(),
		Synthesis: c.Synthesis,
		Status:    string(c.Status),
	}
}
