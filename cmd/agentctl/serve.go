package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentctl/runtime/internal/checkpoint"
	"github.com/agentctl/runtime/internal/config"
	"github.com/agentctl/runtime/internal/httpapi"
	"github.com/agentctl/runtime/internal/skills"
	"github.com/spf13/cobra"
)

func buildServeCmd() *cobra.Command {
	var (
		addr         string
		workspaceDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent runtime over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}

			cpStore, err := checkpoint.NewStore(checkpoint.Config{
				Enabled:                 cfg.Checkpoint.Enabled,
				Backend:                 cfg.Checkpoint.Backend,
				Dir:                     cfg.Checkpoint.Dir,
				DSN:                     cfg.Checkpoint.DSN,
				MaxCheckpointsPerThread: cfg.Checkpoint.MaxCheckpointsPerThread,
			})
			if err != nil {
				return fmt.Errorf("build checkpoint store: %w", err)
			}

			skillMgr := skills.NewManager()
			if err := skillMgr.Discover(skillRoots(workspaceDir)...); err != nil {
				return fmt.Errorf("discover skills: %w", err)
			}

			jwtSecret := os.Getenv("AGENTCTL_JWT_SECRET")
			server := &httpapi.Server{
				Provider:     provider,
				Checkpoints:  cpStore,
				Skills:       skillMgr,
				WorkspaceDir: workspaceDir,
				Model:        cfg.Default.Model,
				MaxSteps:     cfg.MaxSteps,
				Tools:        defaultTools(workspaceDir, skillMgr),
				Auth:         httpapi.NewJWTAuth(jwtSecret, 24*time.Hour),
				Metrics:      httpapi.NewMetrics(),
				Logger:       slog.Default(),
			}

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("serving", "addr", addr)
				if jwtSecret == "" {
					slog.Warn("AGENTCTL_JWT_SECRET is not set; /v1/run is unauthenticated")
				}
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&workspaceDir, "workspace", ".", "workspace directory every request's tools operate on")
	return cmd
}
