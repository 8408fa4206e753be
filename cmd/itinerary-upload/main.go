package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/itinerary-scanner/internal/correlation"
	"github.com/zombor/itinerary-scanner/internal/itinerary"
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

	defaults := correlation.DefaultConfig()
	fs := ff.NewFlagSet("itinerary-upload")
	var (
		serverURL    = fs.StringLong("server", "http://localhost:8080", "Itinerary scanner base URL")
		tripID       = fs.StringLong("trip", "", "Trip ID to add the extracted activities to")
		tripName     = fs.StringLong("trip-name", "", "Create a trip with this name and add the activities to it")
		interval     = fs.DurationLong("interval", defaults.Interval, "Time between result queries")
		window       = fs.IntLong("window", defaults.Window, "Number of recent results searched per query")
		displayDelay = fs.DurationLong("display-delay", defaults.DisplayDelay, "How long the raw text is shown before the activities")
		timeout      = fs.DurationLong("timeout", 5*time.Minute, "Give up waiting for a result after this long (0 waits forever)")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("ITINERARY_UPLOAD"),
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

	args := fs.GetArgs()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: expected exactly one document to upload\n")
		os.Exit(1)
	}

	doc, err := readDocument(args[0])
	if err != nil {
		slog.Error("Failed to read document", "path", args[0], "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := correlation.NewClient(*serverURL, itinerary.BasicAuth{Username: *authUser, Password: *authPass})

	if *tripID == "" && *tripName != "" {
		trip, err := client.CreateTrip(ctx, *tripName)
		if err != nil {
			slog.Error("Failed to create trip", "name", *tripName, "error", err)
			os.Exit(1)
		}
		slog.Info("Trip created", "id", trip.ID, "name", trip.Name)
		*tripID = trip.ID
	}

	poller := correlation.NewPoller(client, client, client, correlation.Config{
		Interval:     *interval,
		Window:       *window,
		DisplayDelay: *displayDelay,
		Timeout:      *timeout,
	})
	poller.Observe(printTransition)

	if _, err := poller.Run(ctx, doc, *tripID); err != nil {
		slog.Error("No itinerary extracted", "file", doc.FileName, "state", poller.State(), "error", err)
		os.Exit(1)
	}

	for _, report := range poller.Wait() {
		slog.Info("Trip updated", "trip_id", *tripID, "activities", report.Activities, "expenses", report.Expenses, "failures", len(report.Failures))
	}
}

// readDocument loads a file and guesses its content type
func readDocument(path string) (itinerary.UploadedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return itinerary.UploadedDocument{}, err
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return itinerary.UploadedDocument{
		FileName:    filepath.Base(path),
		Data:        data,
		ContentType: contentType,
	}, nil
}

// printTransition shows progress on the terminal
func printTransition(t correlation.Transition) {
	switch t.To {
	case correlation.StateUploading:
		fmt.Printf("Uploading %s...\n", t.File)
	case correlation.StateWaiting:
		fmt.Printf("Waiting for %s to be processed...\n", t.File)
	case correlation.StateMatched:
		fmt.Printf("\nRecognized text:\n%s\n\n", t.Result.OriginalText)
	case correlation.StateRendered:
		fmt.Printf("Found %d activities:\n", len(t.Result.Parsed))
		for _, r := range t.Result.Parsed {
			fmt.Printf("  - [%s] %s", r.Category, r.Title)
			if r.Date != "" || r.Time.String() != "" {
				fmt.Printf(" (%s %s)", r.Date, r.Time.String())
			}
			if loc := r.Location.Display(); loc != "" {
				fmt.Printf(" @ %s", loc)
			}
			if r.Price != "" {
				fmt.Printf(" %s", r.Price)
			}
			fmt.Println()
		}
	case correlation.StateTimedOut:
		fmt.Printf("Still processing %s, giving up.\n", t.File)
	case correlation.StateFailed:
		fmt.Printf("Upload failed: %v\n", t.Err)
	}
}
