package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "programme-advisor"
	envPrefix = "PA"
)

type Config struct {
	AI             *AIConfig             `mapstructure:"ai"`
	Extraction     *ExtractionConfig     `mapstructure:"extraction"`
	Recommendation *RecommendationConfig `mapstructure:"recommendation"`
	Catalogue      *CatalogueConfig      `mapstructure:"catalogue"`
	Server         *ServerConfig         `mapstructure:"server"`
}

type AIConfig struct {
	Provider          string        `mapstructure:"provider"`
	ExtractionTimeout time.Duration `mapstructure:"extraction-timeout"`
	SynthesisTimeout  time.Duration `mapstructure:"synthesis-timeout"`
	Gemini            *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string   `mapstructure:"api-key" json:"-"`
	APIKeyFile   string   `mapstructure:"api-key-file"`
	Model        string   `mapstructure:"model"`
	BaseURL      string   `mapstructure:"base-url"`
	MaxRetries   int      `mapstructure:"max-retries"`
	MaxLogLength int      `mapstructure:"max-log-length"`
	Temperature  *float32 `mapstructure:"temperature"`
}

type ExtractionConfig struct {
	MaxInputChars int `mapstructure:"max-input-chars"`
}

type RecommendationConfig struct {
	OutreachWords   int    `mapstructure:"outreach-words"`
	SubmissionsFile string `mapstructure:"submissions-file"`
}

type CatalogueConfig struct {
	Source            string          `mapstructure:"source"`
	Postgres          *PostgresConfig `mapstructure:"postgres"`
	REST              *RESTConfig     `mapstructure:"rest"`
	Files             *FilesConfig    `mapstructure:"files"`
	DescriptionLimit  int             `mapstructure:"description-limit"`
	ExcludeCategories []string        `mapstructure:"exclude-categories"`
	ExcludeFile       string          `mapstructure:"exclude-file"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn" json:"-"`
}

type RESTConfig struct {
	URL       string `mapstructure:"url"`
	Token     string `mapstructure:"token" json:"-"`
	TokenFile string `mapstructure:"token-file"`
}

type FilesConfig struct {
	Dir string `mapstructure:"dir"`
}

type ServerConfig struct {
	Listen         string `mapstructure:"listen"`
	MaxUploadBytes int64  `mapstructure:"max-upload-bytes"`
	Metrics        bool   `mapstructure:"metrics"`
}

var (
	// Used for flags.
	cfgFile string
	envFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "programme-advisor matches a professional profile to the three best-fitting programmes of a catalogue",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == versionCmd.Name() {
				return nil
			}
			return initConfig()
		},
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is programme-advisor.yaml in current directory)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "a dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		log.Fatalf("binding debug flag: %v", err)
	}
	if err := viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json")); err != nil {
		log.Fatalf("binding json flag: %v", err)
	}

	setDefaults(viper.GetViper())
}

// setDefaults registers every known key, so AutomaticEnv can also override keys absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.extraction-timeout", 30*time.Second)
	v.SetDefault("ai.synthesis-timeout", 60*time.Second)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.base-url", "")
	v.SetDefault("ai.gemini.max-retries", 1)
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("extraction.max-input-chars", 6000)

	v.SetDefault("recommendation.outreach-words", 250)
	v.SetDefault("recommendation.submissions-file", "")

	v.SetDefault("catalogue.source", "")
	v.SetDefault("catalogue.postgres.dsn", "")
	v.SetDefault("catalogue.rest.url", "")
	v.SetDefault("catalogue.rest.token", "")
	v.SetDefault("catalogue.rest.token-file", "")
	v.SetDefault("catalogue.files.dir", "")
	v.SetDefault("catalogue.description-limit", 0)
	v.SetDefault("catalogue.exclude-categories", []string{})
	v.SetDefault("catalogue.exclude-file", "")

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.max-upload-bytes", 10<<20)
	v.SetDefault("server.metrics", true)
}

func initConfig() error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		return fmt.Errorf("binding GEMINI_API_KEY_FILE environment variable: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// The file is optional unless it was asked for explicitly.
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	return nil
}

// loadEnvFile loads a dotenv file if it exists. Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}

	return config, nil
}
