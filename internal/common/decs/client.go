// Package decs searches the BIREME Health Sciences Descriptors service. Each
// descriptor comes back with its pt/es/en/fr channels regardless of query language.
package decs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vocabulary-workers/internal/common/config"
	httpclient "vocabulary-workers/internal/common/http"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/common/vocabulary"
	"vocabulary-workers/internal/models"
)

const (
	wordsPath   = "/search-by-words"
	booleanPath = "/search-boolean"

	// booleanDescriptorField restricts boolean queries to descriptor words.
	booleanDescriptorField = "101"
)

// Channels are the languages every DeCS descriptor is published in.
var Channels = []string{"pt", "es", "en", "fr"}

type Client struct {
	config config.DeCSConfig
	http   *httpclient.Client
	logger logger.Logger
}

func NewClient(cfg config.DeCSConfig, log logger.Logger) *Client {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en", "pt", "es"}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		config: cfg,
		http:   httpclient.NewRateLimitedClient(timeout, cfg.RateLimit),
		logger: log.With(map[string]interface{}{"backend": models.SourceDeCS}),
	}
}

func (c *Client) Name() string { return models.SourceDeCS }

func (c *Client) Languages() []string { return append([]string(nil), c.config.Languages...) }

// Search runs the word search and, when it yields no usable descriptor, the boolean search.
func (c *Client) Search(ctx context.Context, term, lang string) (*vocabulary.Result, error) {
	res := &vocabulary.Result{Method: vocabulary.MethodWords, Terms: []models.VocabularyTerm{}}

	q := url.Values{}
	q.Set("words", term)
	recs, call, err := c.query(ctx, wordsPath, q, lang)
	call.Concept = term
	res.Calls = append(res.Calls, call)
	if err != nil {
		c.logger.Warn("search-by-words failed", map[string]interface{}{"term": term, "lang": lang, "error": err.Error()})
		return res, err
	}
	if res.Terms = buildTerms(term, lang, recs, false); len(res.Terms) > 0 {
		return res, nil
	}

	res.Method = vocabulary.MethodBoolean
	q = url.Values{}
	q.Set("bool", booleanDescriptorField+" "+term)
	recs, call, err = c.query(ctx, booleanPath, q, lang)
	call.Concept = term
	res.Calls = append(res.Calls, call)
	if err != nil {
		c.logger.Warn("search-boolean failed", map[string]interface{}{"term": term, "lang": lang, "error": err.Error()})
		return res, err
	}

	res.Terms = buildTerms(term, lang, recs, true)
	c.logger.Debug("decs boolean fallback used", map[string]interface{}{"term": term, "lang": lang, "results": len(res.Terms)})
	return res, nil
}

// query waits the configured delay, then issues one GET.
func (c *Client) query(ctx context.Context, endpoint string, q url.Values, lang string) ([]flatRecord, models.TraceEntry, error) {
	entry := models.TraceEntry{
		Stage:    "search",
		Backend:  models.SourceDeCS,
		Language: lang,
		Endpoint: endpoint,
		Method:   http.MethodGet,
	}

	if err := httpclient.Pause(ctx, config.GetDuration(c.config.Delay)); err != nil {
		entry.Error = err.Error()
		return nil, entry, vocabulary.ClassifyError(models.SourceDeCS, err)
	}

	q.Set("lang", lang)
	q.Set("format", "json")

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		entry.Error = err.Error()
		return nil, entry, vocabulary.ClassifyError(models.SourceDeCS, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("apikey", c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		entry.DurationMs = models.Elapsed(start)
		entry.Error = err.Error()
		return nil, entry, vocabulary.ClassifyError(models.SourceDeCS, err)
	}
	defer resp.Body.Close()

	entry.StatusCode = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	entry.DurationMs = models.Elapsed(start)
	if err != nil {
		entry.Error = err.Error()
		return nil, entry, vocabulary.ClassifyError(models.SourceDeCS, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		entry.Error = fmt.Sprintf("status %d", resp.StatusCode)
		return nil, entry, fmt.Errorf("%w: %s returned %d", vocabulary.ErrSearchFailed, endpoint, resp.StatusCode)
	}

	recs, err := decodeRecords(body)
	if err != nil {
		entry.Error = "decode: " + err.Error()
		return nil, entry, fmt.Errorf("%w: decode %s: %v", vocabulary.ErrSearchFailed, endpoint, err)
	}
	entry.ResultCount = len(recs)
	return recs, entry, nil
}

// buildTerms scores records by position; boolean results start lower.
func buildTerms(concept, lang string, recs []flatRecord, boolean bool) []models.VocabularyTerm {
	terms := make([]models.VocabularyTerm, 0, len(recs))
	for i, rec := range recs {
		descriptors := byLanguage(rec.DescriptorList.Items, lang)
		display := map[string]string{}
		for _, ch := range Channels {
			if v := descriptors[ch]; len(v) > 0 {
				display[ch] = v[0]
			}
		}
		if len(display) == 0 {
			continue
		}

		t := models.VocabularyTerm{
			ID:             recordID(rec, lang, concept, i),
			Source:         models.SourceDeCS,
			DisplayTerms:   display,
			TreeNumbers:    rec.treeIDs(),
			RelevanceScore: vocabulary.DeCSScore(i, boolean),
			SourceLanguage: lang,
			SourceConcept:  concept,
		}
		if t.TreeNumbers == nil {
			t.TreeNumbers = []string{}
		}

		if defs := byLanguage(rec.DefinitionList.Items, lang); len(defs) > 0 {
			t.Definitions = map[string]string{}
			for l, v := range defs {
				t.Definitions[l] = v[0]
			}
		}
		if syns := byLanguage(rec.SynonymList.Items, lang); len(syns) > 0 {
			t.Synonyms = syns
		}
		terms = append(terms, t)
	}
	return terms
}

func recordID(rec flatRecord, lang, concept string, ordinal int) string {
	if rec.DecsCode != "" {
		return string(rec.DecsCode)
	}
	if rec.MFN != "" {
		return string(rec.MFN)
	}
	if trees := rec.ownTreeIDs(); len(trees) > 0 {
		return trees[0]
	}
	return vocabulary.SyntheticID(models.SourceDeCS, lang, concept, ordinal)
}
