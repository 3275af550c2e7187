package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cgruenke/jobrank/internal/embedding"
	"github.com/cgruenke/jobrank/internal/filtering"
	"github.com/cgruenke/jobrank/internal/jobsearch"
	"github.com/cgruenke/jobrank/internal/logger"
	"github.com/cgruenke/jobrank/internal/prep"
	"github.com/cgruenke/jobrank/internal/ranking"
	"github.com/cgruenke/jobrank/internal/report"
	"github.com/cgruenke/jobrank/internal/secrets"
	"github.com/cgruenke/jobrank/internal/vectorstore"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes             = "Save results"
	PromptNo              = "Exit without saving"
	PromptReportByCompany = "Report by company"
	PromptPostingsToFile  = "Dump raw postings to file"

	resumeItemID = "__resume__"

	defaultBatchSize         = 64
	defaultMaxTextLen        = 32000
	defaultMaxAttempts       = 5
	defaultInitialBackoff    = time.Second
	defaultMaxBackoff        = 30 * time.Second
	defaultBackoffMultiplier = 2.0
	defaultConcurrency       = 2
	defaultTopN              = 10
	defaultJSONFile          = "top_jobs.json"
	defaultCSVFile           = "top_jobs.csv"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo, PromptReportByCompany, PromptPostingsToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the jobrank pipeline: search, clean, embed, rank",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "save results without asking for confirmation")
	runCmd.Flags().IntP("top", "n", 0, "number of top jobs to output, overrides ranking.top-n")

	viper.BindPFlag("ranking.top-n", runCmd.Flags().Lookup("top"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		zlog.Fatal("config is required")
	}

	applyDefaults(config)

	runID := uuid.NewString()
	zlog = logger.WithRun(zlog, runID)

	zlog.Info("starting the jobrank pipeline", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	zlog.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config.Search == nil || config.Search.Query == "" {
		zlog.Fatal("search query is required under search.query")
	}
	if config.ResumeFile == "" {
		zlog.Fatal("resume file is required under resume-file to rank postings against")
	}

	resume, err := prep.LoadResume(config.ResumeFile)
	if err != nil {
		zlog.Fatal("loading resume", zap.Error(err))
	}

	zlog.Info("loaded resume",
		zap.String("file", config.ResumeFile),
		zap.Int("sections", len(resume.Sections)),
	)

	rapidKey, err := secrets.Load(secrets.Source{
		Name: "rapidapi key",
		File: config.JobSearch.KeyFile,
		Env:  "RAPIDAPI_KEY",
	})
	if err != nil {
		zlog.Fatal(
			"loading rapidapi key",
			zap.Error(err),
			zap.String("hint", "set RAPIDAPI_KEY, or RAPIDAPI_KEY_FILE, or the jobsearch.key-file configuration key"),
		)
	}

	js := jobsearch.New(ctx, zlog, rapidKey)

	zlog.Info("starting the search", zap.String("query", config.Search.Query))

	postings, err := js.Search(config.Search)
	if err != nil {
		zlog.Fatal("searching postings", zap.Error(err))
	}

	zlog.Info("got postings", zap.Int("count", postings.Len()))

	if postings.Len() == 0 {
		zlog.Info("exiting", zap.String("reason", "no postings found"))
		return
	}

	records, err := cleanAndFilter(config, postings, zlog)
	if err != nil {
		zlog.Fatal("preparing records", zap.Error(err))
	}

	if len(records) == 0 {
		zlog.Info("exiting", zap.String("reason", "no records left after cleaning and filters"))
		return
	}

	provider, model, err := newProvider(ctx, config.Embedding)
	if err != nil {
		zlog.Fatal("building embedding provider", zap.Error(err))
	}

	batcher, err := embedding.NewBatcher(provider, batcherConfig(config.Embedding), zlog)
	if err != nil {
		zlog.Fatal("building embedding batcher", zap.Error(err))
	}

	store := vectorstore.New()

	failures, err := embedAll(ctx, batcher, store, records, resume)
	if err != nil {
		zlog.Fatal("embedding", zap.Error(err))
	}

	ranker, err := ranking.New(ranking.Config{
		TopN:    config.Ranking.TopN,
		Epsilon: config.Ranking.Epsilon,
	}, zlog)
	if err != nil {
		zlog.Fatal("building ranker", zap.Error(err))
	}

	ranked, err := ranker.Rank(store)
	if err != nil {
		zlog.Fatal("ranking", zap.Error(err))
	}

	zlog.Info("ranking finished",
		zap.Int("ranked", len(ranked.Results)),
		zap.Int("embedding_failures", len(failures)),
		zap.Int("degenerate_excluded", len(ranked.Excluded)),
	)

	result := report.Build(report.Meta{
		RunID:       runID,
		Model:       model,
		Dimension:   store.Dimension(),
		GeneratedAt: time.Now().UTC(),
	}, ranked, records, failures)

	result.PrintTable(os.Stdout)

	action := PromptYes
	for {
		var err error
		if cmd.Flag("auto-approve").Value.String() == "false" {
			_, action, err = prompt.Run()
			if err != nil {
				zlog.Fatal("exiting", zap.Error(err))
			}
		}

		if err := handleAction(action, config, result, postings, zlog); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			zlog.Fatal("exiting", zap.Error(err))
		}

		if cmd.Flag("auto-approve").Value.String() == "true" {
			return
		}
	}
}

func handleAction(action string, config *Config, result *report.Report, postings *jobsearch.Postings, zlog *zap.Logger) error {
	switch action {
	case PromptYes:
		if err := result.WriteJSON(config.Output.JSONFile); err != nil {
			return fmt.Errorf("writing json results: %w", err)
		}
		if err := result.WriteCSV(config.Output.CSVFile); err != nil {
			return fmt.Errorf("writing csv results: %w", err)
		}
		zlog.Info("saved results",
			zap.String("json", config.Output.JSONFile),
			zap.String("csv", config.Output.CSVFile),
		)
		return errExit
	case PromptNo:
		zlog.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(postings.ReportByCompany(), "", "  ")
		zlog.Info(string(pretty), zap.Int("postings count", postings.Len()))
		return nil
	case PromptPostingsToFile:
		filename, err := postings.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump postings to file: %w", err)
		}
		zlog.Info("dumping postings to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// cleanAndFilter turns raw postings into cleaned records and runs the
// pre-embedding filters.
func cleanAndFilter(config *Config, postings *jobsearch.Postings, zlog *zap.Logger) ([]*prep.Record, error) {
	cleaner, err := prep.NewCleaner(prep.Options{
		Lowercase:     config.Prep.Lowercase,
		StripSpecial:  config.Prep.StripSpecial,
		MissingPolicy: config.Prep.MissingPolicy,
	}, zlog)
	if err != nil {
		return nil, err
	}

	records := cleaner.Clean(postings)

	var excludedCompanies []string
	if config.Exclude != nil {
		excludedCompanies = config.Exclude.Companies
	}

	filters := filtering.New([]filtering.Filter{
		filtering.NewDedupe(),
		filtering.NewEmptyDescription(),
		filtering.NewExcludedCompanies(excludedCompanies),
	}, zlog)

	return filters.Run(records)
}

// embedAll embeds the job records and the resume into the store. The resume
// is embedded last so its vector is checked against the run dimension the
// job batches established.
func embedAll(ctx context.Context, batcher *embedding.Batcher, store *vectorstore.Store, records []*prep.Record, resume *prep.Resume) ([]embedding.Failure, error) {
	items := make([]embedding.Item, 0, len(records))
	for _, record := range records {
		items = append(items, embedding.Item{ID: record.ID, Text: record.EmbedText()})
	}

	result, err := batcher.Run(ctx, items)
	if err != nil {
		return nil, err
	}

	for id, vector := range result.Vectors {
		if err := store.Put(id, vector); err != nil {
			return nil, err
		}
	}

	resumeResult, err := batcher.Run(ctx, []embedding.Item{{ID: resumeItemID, Text: resume.EmbedText()}})
	if err != nil {
		return nil, fmt.Errorf("embedding resume: %w", err)
	}

	resumeVector, ok := resumeResult.Vectors[resumeItemID]
	if !ok {
		reason := "no vector returned"
		if len(resumeResult.Failures) > 0 {
			reason = resumeResult.Failures[0].Reason
		}
		return nil, fmt.Errorf("embedding resume: %s", reason)
	}

	if err := store.SetResume(resumeVector); err != nil {
		return nil, err
	}

	return result.Failures, nil
}

func newProvider(ctx context.Context, cfg *EmbeddingConfig) (embedding.Provider, string, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", "openai":
		apiKey, err := secrets.Load(secrets.Source{
			Name: "openai api key",
			File: cfg.APIKeyFile,
			Env:  "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, "", fmt.Errorf("%w (set OPENAI_API_KEY or embedding.api-key-file)", err)
		}

		p, err := embedding.NewOpenAIProvider(apiKey, cfg.Model)
		if err != nil {
			return nil, "", err
		}
		return p, p.Model(), nil
	case "gemini":
		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: cfg.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, "", fmt.Errorf("%w (set GEMINI_API_KEY or embedding.api-key-file)", err)
		}

		p, err := embedding.NewGeminiProvider(ctx, apiKey, cfg.Model)
		if err != nil {
			return nil, "", err
		}
		return p, p.Model(), nil
	default:
		return nil, "", fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

func batcherConfig(cfg *EmbeddingConfig) embedding.Config {
	return embedding.Config{
		BatchSize:         cfg.BatchSize,
		MaxTextLen:        cfg.MaxTextLen,
		MaxAttempts:       cfg.MaxAttempts,
		InitialBackoff:    cfg.InitialBackoff,
		MaxBackoff:        cfg.MaxBackoff,
		BackoffMultiplier: cfg.BackoffMultiplier,
		Concurrency:       cfg.Concurrency,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

func applyDefaults(config *Config) {
	if config.JobSearch == nil {
		config.JobSearch = &JobSearchConfig{}
	}
	if config.Prep == nil {
		config.Prep = &PrepConfig{Lowercase: true, StripSpecial: true}
	}
	if config.Embedding == nil {
		config.Embedding = &EmbeddingConfig{}
	}
	if config.Ranking == nil {
		config.Ranking = &RankingConfig{}
	}
	if config.Output == nil {
		config.Output = &OutputConfig{}
	}

	e := config.Embedding
	if e.BatchSize == 0 {
		e.BatchSize = defaultBatchSize
	}
	if e.MaxTextLen == 0 {
		e.MaxTextLen = defaultMaxTextLen
	}
	if e.MaxAttempts == 0 {
		e.MaxAttempts = defaultMaxAttempts
	}
	if e.InitialBackoff == 0 {
		e.InitialBackoff = defaultInitialBackoff
	}
	if e.MaxBackoff == 0 {
		e.MaxBackoff = defaultMaxBackoff
	}
	if e.BackoffMultiplier == 0 {
		e.BackoffMultiplier = defaultBackoffMultiplier
	}
	if e.Concurrency == 0 {
		e.Concurrency = defaultConcurrency
	}

	if config.Ranking.TopN == 0 {
		config.Ranking.TopN = defaultTopN
	}

	if config.Output.JSONFile == "" {
		config.Output.JSONFile = defaultJSONFile
	}
	if config.Output.CSVFile == "" {
		config.Output.CSVFile = defaultCSVFile
	}
}
