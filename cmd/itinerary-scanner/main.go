package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zombor/itinerary-scanner/internal/itinerary"
	"github.com/zombor/itinerary-scanner/internal/scanning"
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

	fs := ff.NewFlagSet("itinerary-scanner")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "itinerary.db", "Database file path")
		storagePath    = fs.StringLong("storage", "./uploads", "Storage directory path")
		bucket         = fs.StringLong("bucket", "", "Bucket name trigger events must carry (defaults to the storage directory name)")
		recognizerType = fs.StringLong("recognizer", "tesseract", "Text recognizer: 'tesseract' or 'gemini'")
		ocrLanguages   = fs.StringLong("ocr-languages", "eng", "Comma separated Tesseract languages")
		completerType  = fs.StringLong("completer", "openai", "Language model: 'openai', 'gemini' or 'ollama'")
		openaiKey      = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel    = fs.StringLong("openai-model", "gpt-4", "OpenAI model name")
		openaiBaseURL  = fs.StringLong("openai-base-url", "", "OpenAI compatible API base URL (optional)")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llama3.1", "Ollama model name (e.g., llama3.1, qwen2.5, mistral)")
		concurrency    = fs.IntLong("concurrency", 2, "Documents processed at once")
		rasterizePDF   = fs.BoolLong("rasterize-pdf", "Store the first page of uploaded PDFs as a PNG image")
		kafkaBrokers   = fs.StringLong("kafka-brokers", "", "Comma separated Kafka brokers for object notifications (optional)")
		kafkaTopic     = fs.StringLong("kafka-topic", "itinerary-uploads", "Kafka topic carrying object notifications")
		kafkaGroup     = fs.StringLong("kafka-group", "itinerary-scanner", "Kafka consumer group")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("ITINERARY_SCANNER"),
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

	// Initialize database
	slog.Info("Initializing database...")
	db, err := itinerary.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Gemini can serve as both recognizer and completer; create it once
	var gemini *scanning.Gemini
	useGemini := func() *scanning.Gemini {
		if gemini != nil {
			return gemini
		}
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini...", "model", *geminiModel)
		gemini, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
		return gemini
	}

	// Initialize text recognizer based on type
	var recognizer scanning.TextRecognizer
	switch *recognizerType {
	case "tesseract":
		slog.Info("Initializing Tesseract recognizer...", "languages", *ocrLanguages)
		recognizer = scanning.NewTesseract(strings.Split(*ocrLanguages, ",")...)
	case "gemini":
		recognizer = useGemini()
	default:
		slog.Error("Invalid recognizer type", "type", *recognizerType, "valid", "tesseract or gemini")
		os.Exit(1)
	}

	// Initialize language model based on type
	var completer scanning.Completer
	switch *completerType {
	case "openai":
		apiKey := *openaiKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("OpenAI API key is required. Set --openai-key flag or OPENAI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing OpenAI completer...", "model", *openaiModel)
		completer, err = scanning.NewOpenAI(apiKey, *openaiModel, *openaiBaseURL)
		if err != nil {
			slog.Error("Failed to initialize OpenAI", "error", err)
			os.Exit(1)
		}
	case "gemini":
		completer = useGemini()
	case "ollama":
		slog.Info("Initializing Ollama completer...", "url", *ollamaURL, "model", *ollamaModel)
		completer, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid completer type", "type", *completerType, "valid", "openai, gemini or ollama")
		os.Exit(1)
	}
	defer recognizer.Close()
	if *recognizerType != "gemini" || *completerType != "gemini" {
		defer completer.Close()
	}

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := itinerary.NewLocalStorage(*storagePath, *bucket)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Metrics live on their own registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := itinerary.NewMetrics(registry)

	// Initialize the extraction side
	pipeline := itinerary.NewPipeline(store, recognizer, completer, db, metrics)
	dispatcher := itinerary.NewDispatcher(pipeline, *concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	triggerDone := make(chan struct{})
	if *kafkaBrokers != "" {
		trigger := itinerary.NewKafkaTrigger(strings.Split(*kafkaBrokers, ","), *kafkaTopic, *kafkaGroup, dispatcher)
		go func() {
			defer close(triggerDone)
			defer trigger.Close()
			if err := trigger.Run(ctx); err != nil {
				slog.Error("Kafka trigger stopped", "error", err)
			}
		}()
	} else {
		close(triggerDone)
	}

	// Initialize service
	service := itinerary.NewService(db, store, dispatcher).WithPDFRasterizing(*rasterizePDF)

	// Initialize server
	basicAuth := itinerary.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := itinerary.NewServer(service, basicAuth, registry)

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
	<-ctx.Done()

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	// the trigger must stop dispatching before the dispatcher drains
	<-triggerDone
	dispatcher.Close()
}
