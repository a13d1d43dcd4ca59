// Package mesh searches Medical Subject Headings through NCBI E-utilities:
// esearch resolves free text to descriptor uids, esummary fetches them in one batch.
package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vocabulary-workers/internal/common/config"
	httpclient "vocabulary-workers/internal/common/http"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/common/vocabulary"
	"vocabulary-workers/internal/models"
)

const (
	esearchPath  = "/esearch.fcgi"
	esummaryPath = "/esummary.fcgi"
	language     = "en"
)

type Client struct {
	config config.MeSHConfig
	http   *httpclient.Client
	logger logger.Logger
}

func NewClient(cfg config.MeSHConfig, log logger.Logger) *Client {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.RetMax <= 0 {
		cfg.RetMax = 1000
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		config: cfg,
		http:   httpclient.NewRateLimitedClient(timeout, cfg.RateLimit),
		logger: log.With(map[string]interface{}{"backend": models.SourceMeSH}),
	}
}

func (c *Client) Name() string { return models.SourceMeSH }

// Languages is always English; MeSH has a single implicit language.
func (c *Client) Languages() []string { return []string{language} }

// Search ignores lang. It waits the configured delay before the first call.
func (c *Client) Search(ctx context.Context, term, _ string) (*vocabulary.Result, error) {
	res := &vocabulary.Result{Method: vocabulary.MethodSummary, Terms: []models.VocabularyTerm{}}

	if err := httpclient.Pause(ctx, config.GetDuration(c.config.Delay)); err != nil {
		return res, classify(err)
	}

	ids, call, err := c.esearch(ctx, term)
	call.Concept = term
	res.Calls = append(res.Calls, call)
	if err != nil {
		c.logger.Warn("esearch failed", map[string]interface{}{"term": term, "error": err.Error()})
		return res, err
	}
	if len(ids) == 0 {
		return res, nil
	}

	docs, call, err := c.esummary(ctx, ids)
	call.Concept = term
	res.Calls = append(res.Calls, call)
	if err != nil {
		c.logger.Warn("esummary failed", map[string]interface{}{"term": term, "ids": len(ids), "error": err.Error()})
		return res, err
	}

	res.Terms = buildTerms(term, ids, docs)
	c.logger.Debug("mesh search complete", map[string]interface{}{
		"term":    term,
		"ids":     len(ids),
		"results": len(res.Terms),
	})
	return res, nil
}

func (c *Client) commonParams() url.Values {
	q := url.Values{}
	q.Set("db", "mesh")
	q.Set("retmode", "json")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	if c.config.Tool != "" {
		q.Set("tool", c.config.Tool)
	}
	if c.config.Email != "" {
		q.Set("email", c.config.Email)
	}
	return q
}

func (c *Client) esearch(ctx context.Context, term string) ([]string, models.TraceEntry, error) {
	q := c.commonParams()
	q.Set("retmax", strconv.Itoa(c.config.RetMax))
	q.Set("term", term)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+esearchPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, c.entry(esearchPath, http.MethodGet, time.Now()), fmt.Errorf("%w: %v", vocabulary.ErrSearchFailed, err)
	}

	var body esearchResponse
	entry, err := c.do(req, esearchPath, &body)
	if err != nil {
		return nil, entry, err
	}
	if body.ESearchResult.Error != "" {
		entry.Error = body.ESearchResult.Error
		return nil, entry, fmt.Errorf("%w: esearch: %s", vocabulary.ErrSearchFailed, body.ESearchResult.Error)
	}
	entry.ResultCount = len(body.ESearchResult.IDList)
	return body.ESearchResult.IDList, entry, nil
}

func (c *Client) esummary(ctx context.Context, ids []string) (map[string]map[string]json.RawMessage, models.TraceEntry, error) {
	form := c.commonParams()
	form.Set("id", strings.Join(ids, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+esummaryPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, c.entry(esummaryPath, http.MethodPost, time.Now()), fmt.Errorf("%w: %v", vocabulary.ErrSearchFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body esummaryResponse
	entry, err := c.do(req, esummaryPath, &body)
	if err != nil {
		return nil, entry, err
	}
	if body.Error != "" {
		entry.Error = body.Error
		return nil, entry, fmt.Errorf("%w: esummary: %s", vocabulary.ErrSearchFailed, body.Error)
	}
	docs := body.docs()
	entry.ResultCount = len(docs)
	return docs, entry, nil
}

// do sends req and decodes a JSON body into out, returning the trace entry for the call.
func (c *Client) do(req *http.Request, endpoint string, out interface{}) (models.TraceEntry, error) {
	start := time.Now()
	entry := c.entry(endpoint, req.Method, start)

	resp, err := c.http.Do(req)
	if err != nil {
		entry.DurationMs = models.Elapsed(start)
		entry.Error = err.Error()
		return entry, classify(err)
	}
	defer resp.Body.Close()

	entry.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		entry.DurationMs = models.Elapsed(start)
		entry.Error = fmt.Sprintf("status %d", resp.StatusCode)
		return entry, fmt.Errorf("%w: %s returned %d: %s", vocabulary.ErrSearchFailed, endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		entry.DurationMs = models.Elapsed(start)
		entry.Error = "decode: " + err.Error()
		return entry, classify(fmt.Errorf("%w: decode %s: %v", vocabulary.ErrSearchFailed, endpoint, err))
	}
	entry.DurationMs = models.Elapsed(start)
	return entry, nil
}

func (c *Client) entry(endpoint, method string, start time.Time) models.TraceEntry {
	return models.TraceEntry{
		Stage:      "search",
		Backend:    models.SourceMeSH,
		Language:   language,
		Endpoint:   endpoint,
		Method:     method,
		DurationMs: models.Elapsed(start),
	}
}

// buildTerms keeps esearch order; the score of a term is fixed by its esearch position.
func buildTerms(concept string, ids []string, docs map[string]map[string]json.RawMessage) []models.VocabularyTerm {
	terms := make([]models.VocabularyTerm, 0, len(ids))
	for k, uid := range ids {
		fields, ok := docs[uid]
		if !ok {
			continue
		}
		d := decodeSummaryDoc(fields)
		if len(d.MeshTerms) == 0 || strings.TrimSpace(d.MeshTerms[0]) == "" {
			continue
		}

		id := d.MeshUI
		if id == "" {
			id = uid
		}

		t := models.VocabularyTerm{
			ID:             id,
			Source:         models.SourceMeSH,
			DisplayTerms:   map[string]string{language: strings.TrimSpace(d.MeshTerms[0])},
			TreeNumbers:    extractTreeNumbers(fields),
			RelevanceScore: vocabulary.MeSHScore(k),
			SourceLanguage: language,
			SourceConcept:  concept,
		}
		if d.ScopeNote != "" {
			t.Definitions = map[string]string{language: d.ScopeNote}
		}
		if alts := alternateTerms(d.MeshTerms); len(alts) > 0 {
			t.Synonyms = map[string][]string{language: alts}
		}
		terms = append(terms, t)
	}
	return terms
}

func alternateTerms(all []string) []string {
	if len(all) < 2 {
		return nil
	}
	preferred := strings.TrimSpace(all[0])
	out := make([]string, 0, len(all)-1)
	for _, a := range all[1:] {
		a = strings.TrimSpace(a)
		if a != "" && a != preferred {
			out = append(out, a)
		}
	}
	return out
}

func classify(err error) error {
	return vocabulary.ClassifyError(models.SourceMeSH, err)
}
