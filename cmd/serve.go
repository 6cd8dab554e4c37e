package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/speaker-labeler/internal/ai"
	"github.com/kozaktomas/speaker-labeler/internal/config"
	"github.com/kozaktomas/speaker-labeler/internal/detect"
	"github.com/kozaktomas/speaker-labeler/internal/diarize"
	"github.com/kozaktomas/speaker-labeler/internal/logger"
	"github.com/kozaktomas/speaker-labeler/internal/metrics"
	"github.com/kozaktomas/speaker-labeler/internal/pipeline"
	"github.com/kozaktomas/speaker-labeler/internal/store"
	"github.com/kozaktomas/speaker-labeler/internal/store/postgres"
	"github.com/kozaktomas/speaker-labeler/internal/transcript"
	"github.com/kozaktomas/speaker-labeler/internal/web"
	"github.com/kozaktomas/speaker-labeler/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Speaker Labeler web server.
The server accepts video uploads, runs processing jobs in the background
with live progress over SSE, and stores results in PostgreSQL or on disk.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("data-dir", "./data", "Directory for the file-backed store when no database is configured")
	serveCmd.Flags().String("provider", "", "LLM naming assist: openai, gemini, ollama (empty = disabled)")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (string, int) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return host, port
}

// openStore picks PostgreSQL when DATABASE_URL is set, the file-backed store
// otherwise.
func openStore(cfg *config.Config, dataDir string) (store.Store, error) {
	if cfg.Database.URL == "" {
		return store.NewFileStore(dataDir)
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	if err := pool.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return postgres.NewRecordingStore(pool), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	st, err := openStore(cfg, mustGetString(cmd, "data-dir"))
	if err != nil {
		return err
	}
	defer st.Close()

	diarizer := diarize.NewClient(cfg.Diarize.URL, cfg.Diarize.MinSegmentDuration)
	detector := detect.NewClient(cfg.Detect.URL, cfg.Detect.MinConfidence, cfg.Detect.MaxFaces)
	asr := transcript.NewASRClient(cfg.ASR.URL, cfg.ASR.Model)

	assist, err := ai.NewProvider(cmd.Context(), mustGetString(cmd, "provider"), cfg)
	if err != nil {
		return err
	}

	m := metrics.New()

	host, port := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, host, port, web.Deps{
		Store: st,
		Runner: func() (handlers.PipelineRunner, error) {
			return pipeline.New(cfg, log, diarizer, asr, detector, assist)
		},
		Assist: assist,
		Services: map[string]handlers.AvailabilityChecker{
			"detect":  detector,
			"diarize": diarizer,
			"asr":     asr,
		},
		Metrics: m,
		Log:     log,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
