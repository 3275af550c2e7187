package cmd

import (
	"log"
	"time"

	"github.com/cgruenke/jobrank/internal/jobsearch"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobrank"
)

type Config struct {
	Search     *jobsearch.SearchParams `mapstructure:"search"`
	ResumeFile string                  `mapstructure:"resume-file"`
	JobSearch  *JobSearchConfig        `mapstructure:"jobsearch"`
	Prep       *PrepConfig             `mapstructure:"prep"`
	Exclude    *struct {
		Companies []string
	} `mapstructure:"exclude"`
	Embedding *EmbeddingConfig `mapstructure:"embedding"`
	Ranking   *RankingConfig   `mapstructure:"ranking"`
	Output    *OutputConfig    `mapstructure:"output"`
}

type JobSearchConfig struct {
	KeyFile string `mapstructure:"key-file"`
}

type PrepConfig struct {
	Lowercase     bool   `mapstructure:"lowercase"`
	StripSpecial  bool   `mapstructure:"strip-special"`
	MissingPolicy string `mapstructure:"missing-policy"`
}

type EmbeddingConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	APIKeyFile        string        `mapstructure:"api-key-file"`
	BatchSize         int           `mapstructure:"batch-size"`
	MaxTextLen        int           `mapstructure:"max-text-len"`
	MaxAttempts       int           `mapstructure:"max-attempts"`
	InitialBackoff    time.Duration `mapstructure:"initial-backoff"`
	MaxBackoff        time.Duration `mapstructure:"max-backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff-multiplier"`
	Concurrency       int           `mapstructure:"concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests-per-second"`
}

type RankingConfig struct {
	TopN    int     `mapstructure:"top-n"`
	Epsilon float64 `mapstructure:"epsilon"`
}

type OutputConfig struct {
	JSONFile string `mapstructure:"json-file"`
	CSVFile  string `mapstructure:"csv-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobrank is a simple cli that ranks job postings against a resume by embedding similarity",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("jobsearch.key-file", "RAPIDAPI_KEY_FILE"); err != nil {
		log.Fatalf("binding RAPIDAPI_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobrank.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	// Local .env can provide key file locations; missing file is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
