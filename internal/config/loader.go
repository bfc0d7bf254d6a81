package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "pdftrans"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PDFTRANS"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader around a caller-owned viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and sets defaults.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we'll use defaults and env vars
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.unmarshalAndValidate()
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	return l.unmarshalAndValidate()
}

// Current unmarshals whatever the viper instance holds right now, including
// flag values bound after the initial load.
func (l *Loader) Current() (*Config, error) {
	return l.unmarshalAndValidate()
}

func (l *Loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so that env vars and Unmarshal see it.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("base_dir", defaults.BaseDir)
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("folders.input", defaults.Folders.Input)
	l.v.SetDefault("folders.output", defaults.Folders.Output)
	l.v.SetDefault("folders.processed", defaults.Folders.Processed)
	l.v.SetDefault("folders.error", defaults.Folders.Error)
	l.v.SetDefault("folders.temp_ocr", defaults.Folders.TempOCR)

	l.v.SetDefault("ocr.binary", defaults.OCR.Binary)
	l.v.SetDefault("ocr.language", defaults.OCR.Language)
	l.v.SetDefault("ocr.jobs", defaults.OCR.Jobs)
	l.v.SetDefault("ocr.force_ocr", defaults.OCR.ForceOCR)
	l.v.SetDefault("ocr.deskew", defaults.OCR.Deskew)
	l.v.SetDefault("ocr.output_type", defaults.OCR.OutputType)
	l.v.SetDefault("ocr.timeout", defaults.OCR.Timeout)

	l.v.SetDefault("translator.endpoint", defaults.Translator.Endpoint)
	l.v.SetDefault("translator.model", defaults.Translator.Model)
	l.v.SetDefault("translator.source_language", defaults.Translator.SourceLanguage)
	l.v.SetDefault("translator.target_language", defaults.Translator.TargetLanguage)
	l.v.SetDefault("translator.temperature", defaults.Translator.Temperature)
	l.v.SetDefault("translator.num_ctx", defaults.Translator.NumCtx)
	l.v.SetDefault("translator.timeout", defaults.Translator.Timeout)
	l.v.SetDefault("translator.min_chars", defaults.Translator.MinChars)

	l.v.SetDefault("rewrite.min_block_chars", defaults.Rewrite.MinBlockChars)
	l.v.SetDefault("rewrite.font_name", defaults.Rewrite.FontName)
	l.v.SetDefault("rewrite.font_size", defaults.Rewrite.FontSize)
	l.v.SetDefault("rewrite.fill_color", defaults.Rewrite.FillColor)
	l.v.SetDefault("rewrite.text_color", defaults.Rewrite.TextColor)
	l.v.SetDefault("rewrite.line_spacing", defaults.Rewrite.LineSpacing)

	l.v.SetDefault("batch.workers", defaults.Batch.Workers)
	l.v.SetDefault("batch.poll_interval", defaults.Batch.PollInterval)
	l.v.SetDefault("batch.watch_events", defaults.Batch.WatchEvents)
	l.v.SetDefault("batch.error_collision", defaults.Batch.ErrorCollision)
	l.v.SetDefault("batch.show_progress", defaults.Batch.ShowProgress)
	l.v.SetDefault("batch.show_pages", defaults.Batch.ShowPages)
	l.v.SetDefault("batch.progress_width", defaults.Batch.ProgressWidth)
	l.v.SetDefault("batch.show_eta", defaults.Batch.ShowETA)
	l.v.SetDefault("batch.show_rate", defaults.Batch.ShowRate)

	l.v.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	paths = append(paths, "/etc/"+ConfigFileName)

	return paths
}
