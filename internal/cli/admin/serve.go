package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/api/handlers"
	"github.com/cloo-solutions/nutrikb/internal/jobs"
	"github.com/cloo-solutions/nutrikb/internal/logger"
	"github.com/cloo-solutions/nutrikb/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the nutrikb API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides NUTRIKB_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	a, closeApp, err := loadApp(ctx, appOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer closeApp()

	port := a.cfg.Port
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}

	var indexWorker *jobs.Worker
	if a.cfg.IndexInterval > 0 {
		processor := jobs.NewIndexProcessor(a.indexer, a.cfg.IndexBatchSize)
		indexWorker = jobs.NewWorker("index", processor, a.cfg.IndexInterval)
		go indexWorker.Start(ctx)
	}

	router := server.NewRouter(server.RouterConfig{
		KnowledgeHandler:      handlers.NewKnowledgeHandler(a.knowledge, a.indexer, a.retriever),
		RecommendationHandler: handlers.NewRecommendationHandler(a.rules),
		ConsultationHandler:   handlers.NewConsultationHandler(a.consultations),
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("shutting down")

	if indexWorker != nil {
		indexWorker.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
