// Package config provides XML-based configuration management for the
// reporting backend.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"ExcelReporter"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Upload validation policy
	Validation ValidationConfig `xml:"Validation"`

	// Analysis collaborator configuration
	Analyzer AnalyzerConfig `xml:"Analyzer"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	RecordsDirectory string `xml:"RecordsDirectory"`
	TablesDirectory  string `xml:"TablesDirectory"`
}

// ValidationConfig contains upload policy settings. A YAML override file in
// the data directory takes precedence when present.
type ValidationConfig struct {
	MaxFiles          int    `xml:"MaxFiles"`
	MaxUploadSize     string `xml:"MaxUploadSize"`
	AllowedExtensions string `xml:"AllowedExtensions"`
	PolicyFile        string `xml:"PolicyFile"`
}

// AnalyzerConfig contains LLM collaborator settings. The API key is read
// from the environment, never from this file.
type AnalyzerConfig struct {
	Provider       string `xml:"Provider"` // "openai" or "mock"
	Model          string `xml:"Model"`
	BaseURL        string `xml:"BaseURL"`
	TimeoutSeconds int    `xml:"TimeoutSeconds"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	Environment          string `xml:"Environment"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	DuckDBThreads        int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit    string `xml:"DuckDBMemoryLimit"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "http://localhost:3000",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "300M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			RecordsDirectory: "./data/records",
			TablesDirectory:  "./data/tables",
		},
		Validation: ValidationConfig{
			MaxFiles:          5,
			MaxUploadSize:     "50M",
			AllowedExtensions: ".xlsx,.xls",
			PolicyFile:        "./data/defaults/validation.yaml",
		},
		Analyzer: AnalyzerConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			BaseURL:        "",
			TimeoutSeconds: 60,
		},
		Advanced: AdvancedConfig{
			Environment:          "development",
			EnableRequestLogging: true,
			DuckDBThreads:        2,
			DuckDBMemoryLimit:    "512MB",
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Excel Reporter Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		c.Advanced.Environment = env
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.AllowOrigins = origins
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if !filepath.IsAbs(c.Storage.RecordsDirectory) {
		c.Storage.RecordsDirectory = filepath.Join(configDir, c.Storage.RecordsDirectory)
	}
	if !filepath.IsAbs(c.Storage.TablesDirectory) {
		c.Storage.TablesDirectory = filepath.Join(configDir, c.Storage.TablesDirectory)
	}
	if c.Validation.PolicyFile != "" && !filepath.IsAbs(c.Validation.PolicyFile) {
		c.Validation.PolicyFile = filepath.Join(configDir, c.Validation.PolicyFile)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// MaxUploadBytes parses the configured per-file size ceiling.
func (c *AppConfig) MaxUploadBytes() int64 {
	return parseSize(c.Validation.MaxUploadSize, 50*1024*1024)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.RecordsDirectory,
		c.Storage.TablesDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// parseSize parses strings like "50M", "1G", or plain byte counts.
func parseSize(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1024
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1024 * 1024
		s = s[:len(s)-1]
	case 'G', 'g':
		mult = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n * mult
}
