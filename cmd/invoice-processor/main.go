package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoice-processor/internal/api"
	"github.com/zombor/invoice-processor/internal/extraction"
	"github.com/zombor/invoice-processor/internal/logger"
	"github.com/zombor/invoice-processor/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine, real environment variables still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	fs := ff.NewFlagSet("invoice-processor")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		backendName    = fs.StringLong("backend", "", "Model backend: 'anthropic' (default), 'gemini', 'openai' or 'ollama' (or set AI_PROVIDER env var)")
		anthropicKey   = fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)")
		anthropicModel = fs.StringLong("anthropic-model", "claude-sonnet-4-5", "Anthropic model name")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		openaiKey      = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel    = fs.StringLong("openai-model", "gpt-4o", "OpenAI model name")
		openaiURL      = fs.StringLong("openai-url", "", "OpenAI-compatible API base URL (optional)")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llama3.2-vision, qwen2.5vl)")
		maxFileSizeMB  = fs.IntLong("max-file-size-mb", api.DefaultMaxFileSizeMB, "Maximum upload size in MB")
		concurrency    = fs.IntLong("page-concurrency", extraction.DefaultPageConcurrency, "Pages extracted in parallel per document")
		timeout        = fs.DurationLong("timeout", 5*time.Minute, "Processing timeout per document (0 disables)")
		dbPath         = fs.StringLong("db", "invoices.db", "Database file path")
		storageKind    = fs.StringLong("storage", "local", "Storage for uploaded files: 'local' or 's3'")
		storagePath    = fs.StringLong("storage-path", "./invoices", "Storage directory path (local storage)")
		s3Bucket       = fs.StringLong("s3-bucket", "", "S3 bucket (s3 storage)")
		s3Prefix       = fs.StringLong("s3-prefix", "invoices", "S3 key prefix (s3 storage)")
		s3Region       = fs.StringLong("s3-region", "", "S3 region (defaults to the AWS config)")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		logFormat      = fs.StringLong("log-format", "text", "Log format: text or json")
		mcpStdio       = fs.BoolLong("mcp-stdio", "Serve the MCP tools over stdin/stdout instead of HTTP")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_PROCESSOR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger.Init(logger.Config{Level: *logLevel, Format: *logFormat})

	// Initialize model backend
	cfg := scanning.Config{
		Backend:        scanning.SelectBackend(*backendName),
		AnthropicKey:   envFallback(*anthropicKey, "ANTHROPIC_API_KEY"),
		AnthropicModel: *anthropicModel,
		GeminiKey:      envFallback(*geminiKey, "GEMINI_API_KEY"),
		GeminiModel:    *geminiModel,
		OpenAIKey:      envFallback(*openaiKey, "OPENAI_API_KEY"),
		OpenAIModel:    *openaiModel,
		OpenAIBaseURL:  *openaiURL,
		OllamaURL:      *ollamaURL,
		OllamaModel:    *ollamaModel,
	}
	backend, err := scanning.NewBackend(cfg)
	if err != nil {
		slog.Error("Failed to initialize model backend", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer backend.Close()
	slog.Info("Model backend ready", "provider", backend.Provider(), "model", backend.ModelName())

	pipeline := extraction.NewPipeline(backend, extraction.Options{PageConcurrency: *concurrency})

	// Initialize database
	slog.Info("Initializing database...", "path", *dbPath)
	db, err := api.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize storage
	var store api.Storage
	switch *storageKind {
	case "local":
		slog.Info("Initializing local storage...", "path", *storagePath)
		store, err = api.NewLocalStorage(*storagePath)
	case "s3":
		slog.Info("Initializing S3 storage...", "bucket", *s3Bucket, "prefix", *s3Prefix)
		store, err = api.NewS3Storage(context.Background(), api.S3Config{
			Bucket: *s3Bucket,
			Prefix: *s3Prefix,
			Region: *s3Region,
		})
	default:
		err = fmt.Errorf("invalid storage type %q, use 'local' or 's3'", *storageKind)
	}
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := api.NewService(pipeline, db, store, api.Options{
		MaxFileSizeMB: *maxFileSizeMB,
		Timeout:       *timeout,
		Provider:      backend.Provider(),
		Model:         backend.ModelName(),
	})
	info := api.ServerInfo{
		Name:     api.DefaultServerName,
		Version:  version,
		Provider: backend.Provider(),
		Model:    backend.ModelName(),
	}

	if *mcpStdio {
		slog.Info("Serving MCP over stdio")
		if err := api.ServeMCPStdio(api.NewMCPServer(service, info)); err != nil {
			slog.Error("MCP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	basicAuth := api.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := api.NewServer(service, basicAuth, info)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

// envFallback returns value, or the named environment variable when value is empty
func envFallback(value, env string) string {
	if value != "" {
		return value
	}
	return os.Getenv(env)
}
