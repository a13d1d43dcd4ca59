// cmd/vocab-cli/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"

	"vocabulary-workers/internal/app"
	"vocabulary-workers/internal/common/config"
	"vocabulary-workers/internal/common/frameworks"
	"vocabulary-workers/internal/common/logger"
	"vocabulary-workers/internal/models"

	ec "vocabulary-workers/internal/workers/vocabulary/extract-concepts"
	ft "vocabulary-workers/internal/workers/vocabulary/format-terms"
	rt "vocabulary-workers/internal/workers/vocabulary/resolve-terms"
	sd "vocabulary-workers/internal/workers/vocabulary/search-descriptors"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	highStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	questionFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "framework",
			Aliases:  []string{"f"},
			Usage:    "Question framework (PICO, SPIDER, PCC, ...)",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:    "element",
			Aliases: []string{"e"},
			Usage:   "Framework element as CODE=text, repeatable",
		},
		&cli.StringFlag{
			Name:    "question",
			Aliases: []string{"q"},
			Usage:   "Full research question, used as extraction context",
		},
	}

	return &cli.App{
		Name:  "vocab-cli",
		Usage: "Resolve research questions to MeSH and DeCS descriptors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config file (default: configs/config.yaml lookup)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Skip the language model and extract concepts with the keyword heuristic",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print raw JSON instead of a rendered listing",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "resolve",
				Usage:  "Run the full pipeline for one question",
				Action: resolveCommand,
				Flags: append(questionFlags,
					&cli.BoolFlag{
						Name:  "formatted",
						Usage: "Print the plain-text term block consumed by search string generation",
					},
					&cli.BoolFlag{
						Name:  "high-only",
						Usage: "With --formatted, keep only high-relevance terms",
					},
				),
			},
			{
				Name:   "extract",
				Usage:  "Extract search concepts without searching",
				Action: extractCommand,
				Flags:  questionFlags,
			},
			{
				Name:   "search",
				Usage:  "Look up one term in one backend",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "term",
						Aliases:  []string{"t"},
						Usage:    "Term to look up",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "backend",
						Aliases: []string{"b"},
						Usage:   "Vocabulary backend (mesh, decs)",
						Value:   models.SourceMeSH,
					},
					&cli.StringFlag{
						Name:  "lang",
						Usage: "Query language (defaults to the backend's first language)",
					},
				},
			},
			{
				Name:   "frameworks",
				Usage:  "List supported question frameworks and their slots",
				Action: frameworksCommand,
			},
		},
	}
}

type session struct {
	components *app.Components
	logger     logger.Logger
}

func openSession(c *cli.Context) (*session, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.Bool("offline") {
		cfg.APIs.LLM.BaseURL = ""
		cfg.Pipeline.HeuristicFallback = true
	}

	l := logger.NewStructured(c.String("log-level"), "console", "stderr")
	components, err := app.Build(c.Context, cfg, l)
	if err != nil {
		return nil, err
	}
	return &session{components: components, logger: l}, nil
}

func (s *session) Close() {
	_ = s.components.Close()
}

func requestFrom(c *cli.Context) (*models.ResolveRequest, error) {
	elements, err := parseElements(c.StringSlice("element"))
	if err != nil {
		return nil, err
	}
	return &models.ResolveRequest{
		FrameworkType:     c.String("framework"),
		FrameworkElements: elements,
		FullQuestion:      c.String("question"),
	}, nil
}

// parseElements turns CODE=text pairs into the element map. Codes keep their case.
func parseElements(pairs []string) (map[string]string, error) {
	elements := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		code, text, ok := strings.Cut(pair, "=")
		code = strings.TrimSpace(code)
		if !ok || code == "" {
			return nil, fmt.Errorf("element %q must be CODE=text", pair)
		}
		elements[code] = text
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("at least one --element is required")
	}
	return elements, nil
}

func resolveCommand(c *cli.Context) error {
	req, err := requestFrom(c)
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	pipeline, err := s.components.NewPipeline(s.logger)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	handler := rt.NewHandler(rt.NewConfig(s.components.Config), pipeline, s.logger)
	result, err := handler.Execute(c.Context, raw)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if c.Bool("formatted") {
		formatted := ft.NewHandler(ft.LoadConfig(), s.logger).Execute(c.Context, &ft.Input{
			Results:           result.Results,
			AllUniqueTerms:    result.AllUniqueTerms,
			HighRelevanceOnly: c.Bool("high-only"),
		})
		if c.Bool("json") {
			return writeJSON(out, formatted)
		}
		_, err := fmt.Fprintln(out, formatted.FormattedTerms)
		return err
	}
	if c.Bool("json") {
		return writeJSON(out, result)
	}
	renderResult(out, result)
	return nil
}

func extractCommand(c *cli.Context) error {
	req, err := requestFrom(c)
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	handler := ec.NewHandler(ec.NewConfig(s.components.Config), s.components.Fallback, s.components.Registry, s.logger)
	output := handler.Execute(c.Context, &ec.Input{
		FrameworkElements: req.FrameworkElements,
		FullQuestion:      req.FullQuestion,
		FrameworkType:     req.FrameworkType,
	})

	if c.Bool("json") {
		return writeJSON(c.App.Writer, output)
	}

	out := c.App.Writer
	fmt.Fprintln(out, dimStyle.Render("path: "+output.ExtractionPath))
	for _, code := range s.components.Registry.OrderedCodes(req.FrameworkType, req.FrameworkElements) {
		list, ok := output.Concepts[code]
		if !ok {
			continue
		}
		fmt.Fprintln(out, headerStyle.Render(code))
		for _, concept := range list {
			fmt.Fprintf(out, "  - %s\n", concept)
		}
	}
	if len(output.DroppedElements) > 0 {
		fmt.Fprintln(out, dimStyle.Render("dropped: "+strings.Join(output.DroppedElements, ", ")))
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	handler := sd.NewHandler(sd.NewConfig(s.components.Config), s.components.Backends, s.logger)
	ctx, cancel := context.WithTimeout(c.Context, sd.NewConfig(s.components.Config).Timeout)
	defer cancel()

	output, err := handler.Execute(ctx, &sd.Input{
		Term:     c.String("term"),
		Backend:  c.String("backend"),
		Language: c.String("lang"),
	})
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, output)
	}
	out := c.App.Writer
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%s/%s via %s, cached=%t", output.Backend, output.Language, output.Method, output.Cached)))
	renderTerms(out, output.Terms)
	return nil
}

func frameworksCommand(c *cli.Context) error {
	reg := frameworks.Default()
	out := c.App.Writer
	for _, name := range reg.Names() {
		schema, _ := reg.Lookup(name)
		slots := make([]string, 0, len(schema.SlotCodes()))
		for _, code := range schema.SlotCodes() {
			slots = append(slots, fmt.Sprintf("%s (%s)", code, schema.ElementName(code)))
		}
		fmt.Fprintf(out, "%s  %s\n", headerStyle.Render(name), strings.Join(slots, ", "))
	}
	return nil
}

func renderResult(out io.Writer, result *models.PipelineResult) {
	for _, r := range result.Results {
		label := r.ElementCode
		if r.ElementName != "" {
			label += " " + r.ElementName
		}
		fmt.Fprintln(out, headerStyle.Render(label)+dimStyle.Render("  "+r.OriginalText))
		renderTerms(out, r.Terms)
	}
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d unique terms in %dms", len(result.AllUniqueTerms), result.ProcessTimeMs)))
	if result.Debug != nil && result.Debug.Partial {
		fmt.Fprintln(out, dimStyle.Render("partial result: deadline reached"))
	}
}

// renderTerms highlights the tier shown expanded by default.
func renderTerms(out io.Writer, terms []models.VocabularyTerm) {
	if len(terms) == 0 {
		fmt.Fprintln(out, dimStyle.Render("  (no terms)"))
		return
	}
	for _, t := range terms {
		line := fmt.Sprintf("  %3d  %-12s %s", t.RelevanceScore, t.ID, t.PreferredTerm())
		if t.IsHighRelevance() {
			fmt.Fprintln(out, highStyle.Render(line))
		} else {
			fmt.Fprintln(out, dimStyle.Render(line))
		}
	}
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
