package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-registry/internal/assets"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database/postgres"
	"github.com/kozaktomas/face-registry/internal/faceapi"
	"github.com/kozaktomas/face-registry/internal/match"
	"github.com/kozaktomas/face-registry/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Registry web server.
The server exposes the face registration and recognition API and serves
stored face images as static files.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// initHNSW builds the optional in-memory HNSW index over stored faces.
func initHNSW(ctx context.Context, faceRepo *postgres.FaceRepository) {
	fmt.Println("Building in-memory HNSW index for face matching...")
	if err := faceRepo.EnableHNSW(ctx); err != nil {
		fmt.Printf("Warning: failed to build HNSW index: %v\n", err)
		fmt.Println("Nearest-neighbor queries will use PostgreSQL (slower)")
		return
	}
	fmt.Printf("HNSW index built with %d faces\n", faceRepo.HNSWCount())
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	faceRepo := postgres.NewFaceRepository(pool, cfg.Recognition.Dim)
	if cfg.Database.HNSWEnabled {
		initHNSW(cmd.Context(), faceRepo)
	}

	assetStore, err := assets.NewStore(cfg.Static.Dir)
	if err != nil {
		return fmt.Errorf("preparing asset directory: %w", err)
	}

	provider := faceapi.NewClient(cfg.FaceAPI.URL, cfg.Recognition.DetectorBackend, cfg.Recognition.EmbeddingModel)
	matcher := match.New(cfg.Recognition.MatchThreshold)

	server := web.NewServer(cfg, port, host, faceRepo, assetStore, provider, matcher)

	// Handle graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-done:
		fmt.Println("\nShutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	return nil
}
