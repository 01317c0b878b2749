package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"cycle-dashboard/internal/common"
	"cycle-dashboard/internal/satstats"
	"cycle-dashboard/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env file: %v\n", err)
	}

	// Parse command line arguments
	var (
		csvPath    = flag.String("csv", "", "SAT CSV to import before analysis")
		dataPath   = flag.String("data", envOrDefault(common.EnvDataPath, "data"), "Path to data directory")
		outputPath = flag.String("out", "reports", "Output directory for summary, JSON and charts")
		fromYear   = flag.Int("from", 0, "First year to include (0 for no bound)")
		toYear     = flag.Int("to", 0, "Last year to include (0 for no bound)")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	// Setup logging
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *fromYear != 0 && *toYear != 0 && *fromYear > *toYear {
		log.Fatal().Int("from", *fromYear).Int("to", *toYear).Msg("Invalid year range")
	}

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open data store")
	}
	defer store.Close()

	if *csvPath != "" {
		if err := importCSV(store, *csvPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to import CSV")
		}
	}

	loader := satstats.NewDataLoader()
	if err := loader.LoadFromStore(store, *fromYear, *toYear); err != nil {
		log.Fatal().Err(err).Msg("Failed to load records")
	}
	if len(loader.Records()) == 0 {
		log.Fatal().Str("data", *dataPath).Msg("No SAT records in range; import a CSV with -csv")
	}

	summary, selected := satstats.Analyze(loader.Records(), *fromYear, *toYear)
	if err := store.StoreSummary(summary); err != nil {
		log.Error().Err(err).Msg("Failed to store summary")
	}

	reporter := satstats.NewReporter(summary, selected, *outputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Error().Err(err).Msg("Failed to generate reports")
	}

	// Print summary to console
	reporter.PrintSummary(os.Stdout)

	log.Info().
		Str("output", *outputPath).
		Int("rows", summary.Rows).
		Msg("Analysis completed successfully")
}

// importCSV replaces stored years with the rows of path.
func importCSV(store *storage.Store, path string) error {
	loader := satstats.NewDataLoader()
	if err := loader.LoadFromCSV(path); err != nil {
		return err
	}
	if err := store.StoreRecords(loader.Records()); err != nil {
		return fmt.Errorf("failed to store records: %w", err)
	}
	log.Info().
		Str("csv", path).
		Int("records", len(loader.Records())).
		Int("skipped", loader.Skipped()).
		Int("missing_cells", loader.MissingCells()).
		Msg("Imported SAT data")
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
