package vocabulary

import (
	"context"
	"time"

	"vocabulary-workers/internal/common/metrics"
)

// InstrumentedClient records vocabulary_search_* metrics around another client.
type InstrumentedClient struct {
	next Client
}

func NewInstrumentedClient(next Client) *InstrumentedClient {
	return &InstrumentedClient{next: next}
}

func (c *InstrumentedClient) Name() string        { return c.next.Name() }
func (c *InstrumentedClient) Languages() []string { return c.next.Languages() }

func (c *InstrumentedClient) Search(ctx context.Context, term, lang string) (*Result, error) {
	start := time.Now()
	res, err := c.next.Search(ctx, term, lang)
	metrics.VocabularySearchDuration.WithLabelValues(c.next.Name()).Observe(time.Since(start).Seconds())

	metrics.VocabularySearches.WithLabelValues(c.next.Name(), searchOutcome(res, err)).Inc()

	return res, err
}

func searchOutcome(res *Result, err error) string {
	switch {
	case err != nil:
		return metrics.OutcomeError
	case res != nil && res.Cached:
		return metrics.OutcomeCached
	case res == nil || len(res.Terms) == 0:
		return metrics.OutcomeEmpty
	default:
		return metrics.OutcomeHit
	}
}
