package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/pdftrans/internal/config"
	"github.com/MeKo-Tech/pdftrans/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Error from the last configuration load, reported before any command runs.
	configErr error
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pdftrans",
	Short: "Translate Russian PDFs in a watched folder",
	Long: `pdftrans repairs the text layer of scanned Russian PDFs with ocrmypdf,
translates every text block through a local Ollama model and writes a copy
with the translation drawn over the original text.

Documents move through five folders below the base directory:
  ENTRADA_PDFS       input, scanned recursively
  SALIDA_TRADUCIDOS  translated output
  PDFS_PROCESADOS    sources that were translated
  PDFS_CON_ERROR     sources that could not be processed
  TEMP_OCR           cache of repaired documents

Examples:
  pdftrans watch
  pdftrans once --base-dir /srv/scans --workers 2
  pdftrans translate "Привет мир"
  pdftrans config init`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		if globalConfig == nil {
			initConfig()
			if configErr != nil {
				return configErr
			}
		}
		setupLogging(cmd.ErrOrStderr(), globalConfig)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/pdftrans, /etc/pdftrans)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("base-dir", "",
		"directory holding the lifecycle folders (default is the working directory)")

	bindFlags()

	rootCmd.SetVersionTemplate("pdftrans {{.Version}}\n")
}

// bindFlags binds the global flags to the global viper instance.
func bindFlags() {
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("base_dir", rootCmd.PersistentFlags().Lookup("base-dir"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configLoader = config.NewLoader()

	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = configLoader.LoadWithFile(cfgFile)
	} else {
		cfg, err = configLoader.Load()
	}
	if err != nil {
		globalConfig, configErr = nil, fmt.Errorf("error loading configuration: %w", err)
		return
	}
	globalConfig, configErr = cfg, nil
}

// setupLogging installs a JSON slog handler at the configured level.
func setupLogging(w io.Writer, cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// GetConfig returns the configuration including values bound from CLI flags.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		initConfig()
		if configErr != nil {
			return nil, configErr
		}
	}
	// Flag binding happens after the initial load, so re-read viper.
	return GetConfigLoader().Current()
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
