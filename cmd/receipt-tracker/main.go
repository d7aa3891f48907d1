package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v3/option"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/receipt-tracker/internal/receipt"
	"github.com/zombor/receipt-tracker/internal/scanning"
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

	// A missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	fs := ff.NewFlagSet("receipt-tracker")
	var (
		port           = fs.IntLong("port", 5000, "HTTP server port")
		publicURL      = fs.StringLong("public-url", "", "Public origin used in imageUrl (default: taken from each request)")
		storageBackend = fs.StringLong("storage-backend", "fs", "Upload storage: 'fs' (directory) or 'bolt' (single BoltDB file)")
		storagePath    = fs.StringLong("storage", "./uploads", "Upload directory for the fs backend")
		dbPath         = fs.StringLong("db", "uploads.db", "BoltDB file for the bolt backend")
		maxUploadMB    = fs.IntLong("max-upload-mb", 10, "Maximum upload size in MiB")
		scannerType    = fs.StringLong("scanner", "openai", "Scanner type: 'openai', 'gemini' or 'ollama'")
		openaiKey      = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiBaseURL  = fs.StringLong("openai-base-url", "", "OpenAI-compatible API base URL (optional)")
		openaiVision   = fs.StringLong("openai-vision-model", "gpt-4o", "OpenAI model used to read receipt images")
		openaiText     = fs.StringLong("openai-text-model", "gpt-4o", "OpenAI model used to structure receipt text")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g., llava, llama3.2-vision, qwen2-vl)")
		scanTimeout    = fs.DurationLong("scan-timeout", 2*time.Minute, "Deadline for each external scanning call (0 disables)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize scanner based on type
	var scanner scanning.Scanner
	var err error
	switch *scannerType {
	case "openai":
		apiKey := firstNonEmpty(*openaiKey, os.Getenv("OPENAI_API_KEY"))
		if apiKey == "" {
			slog.Error("OpenAI API key is required. Set --openai-key flag or OPENAI_API_KEY environment variable")
			os.Exit(1)
		}
		var opts []option.RequestOption
		if *openaiBaseURL != "" {
			opts = append(opts, option.WithBaseURL(*openaiBaseURL))
		}
		slog.Info("Initializing OpenAI scanner...", "vision_model", *openaiVision, "text_model", *openaiText)
		scanner, err = scanning.NewOpenAI(apiKey, *openaiVision, *openaiText, opts...)
	case "gemini":
		apiKey := firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY"))
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "openai, gemini or ollama")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", *scannerType, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize upload storage
	slog.Info("Initializing storage...", "backend", *storageBackend)
	var storage receipt.Storage
	switch *storageBackend {
	case "fs":
		storage, err = receipt.NewLocalStorage(*storagePath)
	case "bolt":
		var bolt *receipt.BoltStorage
		bolt, err = receipt.NewBoltStorage(*dbPath)
		if err == nil {
			defer bolt.Close()
			storage = bolt
		}
	default:
		err = fmt.Errorf("unknown storage backend %q", *storageBackend)
	}
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	receiptService := receipt.NewService(receipt.NewStore(), scanner, storage, receipt.Options{
		MaxUploadBytes: int64(*maxUploadMB) << 20,
		ScanTimeout:    *scanTimeout,
	})
	server := receipt.NewServer(receiptService, *publicURL)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", httpServer.Addr))
		slog.Info("Health check", "url", fmt.Sprintf("http://localhost%s/api/health", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
