package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/excel-reporter/backend/internal/analyzer"
	"github.com/excel-reporter/backend/internal/api"
	"github.com/excel-reporter/backend/internal/config"
	"github.com/excel-reporter/backend/internal/records"
	"github.com/excel-reporter/backend/internal/storage"
	"github.com/excel-reporter/backend/internal/tables"
	"github.com/excel-reporter/backend/internal/validate"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	// Resolve config next to the executable
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	configPath := filepath.Join(exeDir, "ExcelReporter.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Artifact storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Durable annotation records
	recordStore, err := records.NewFileStore(cfg.Storage.RecordsDirectory)
	if err != nil {
		fmt.Printf("Failed to initialize record store: %v\n", err)
		os.Exit(1)
	}

	// Per-record DuckDB workspaces
	tableMgr := tables.NewManager(cfg.Storage.TablesDirectory)
	defer tableMgr.CloseAll()

	// Analysis collaborator
	an := buildAnalyzer(cfg)

	// Upload validation policy from config, then optional YAML override
	policy := validate.DefaultPolicy()
	policy.MaxFiles = cfg.Validation.MaxFiles
	policy.MaxFileSize = cfg.MaxUploadBytes()
	if exts := strings.Split(cfg.Validation.AllowedExtensions, ","); len(exts) > 0 {
		policy.AllowedExtensions = policy.AllowedExtensions[:0]
		for _, ext := range exts {
			if ext = strings.TrimSpace(ext); ext != "" {
				policy.AllowedExtensions = append(policy.AllowedExtensions, ext)
			}
		}
	}

	h := api.NewHandler(fileStore, recordStore, an, tableMgr, policy)
	if err := h.LoadPolicyFile(cfg.Validation.PolicyFile); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			return c.Request().URL.Path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	// API Routes
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", h.HandleHealth)

	// File ingestion
	apiGroup.POST("/files/upload", h.HandleUploadBatch)
	apiGroup.GET("/files/recent", h.HandleRecentFiles)

	// Annotation records
	apiGroup.GET("/records", h.HandleListRecords)
	apiGroup.GET("/records/:id", h.HandleGetRecord)
	apiGroup.GET("/records/:id/export/msgpack", h.HandleExportRecordMsgpack)

	// Annotation conversation
	apiGroup.POST("/conversation/advance", h.HandleConversationAdvance)

	// Field role analysis
	apiGroup.POST("/records/:id/analyze", h.HandleAnalyzeRecord)

	// Table workspaces
	apiGroup.POST("/records/:id/tables/load", h.HandleLoadTable)
	apiGroup.GET("/records/:id/tables", h.HandleListTables)
	apiGroup.GET("/records/:id/tables/:name", h.HandleTableInfo)
	apiGroup.GET("/records/:id/tables/:name/preview", h.HandleTablePreview)

	apiGroup.GET("/config/validation-rules", h.HandleGetValidationRules)
	apiGroup.PUT("/config/validation-rules", h.HandleUpdateValidationRules)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Excel Reporter Server                           ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Analyzer:   %-45s║\n", cfg.Analyzer.Provider)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	e.Logger.Fatal(e.StartServer(s))
}

// buildAnalyzer selects the analysis provider from config. The mock provider
// keeps the endpoint usable in development and air-gapped deployments.
func buildAnalyzer(cfg *config.AppConfig) *analyzer.Analyzer {
	switch cfg.Analyzer.Provider {
	case "mock":
		return analyzer.New(analyzer.NewMockProvider())
	default:
		return analyzer.New(analyzer.NewOpenAIProvider(
			cfg.Analyzer.BaseURL,
			cfg.Analyzer.Model,
			time.Duration(cfg.Analyzer.TimeoutSeconds)*time.Second,
		))
	}
}
