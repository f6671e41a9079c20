/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/booktran/internal/engine"
	"github.com/valpere/booktran/internal/recovery"
	"github.com/valpere/booktran/internal/server"
)

var (
	serveAddr           string
	serveChunkInterval  time.Duration
	maintenanceSchedule string
	reapAge             time.Duration
	cacheMaxAge         time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the translation HTTP service",
	Long: `Runs the HTTP service: file uploads stream translation progress
back as server-sent events, and a scheduled maintenance pass reaps old
failed jobs and evicts cold cache entries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync()

		svcs, err := buildServices(engine.Config{ChunkInterval: serveChunkInterval}, log)
		if err != nil {
			return err
		}
		defer svcs.close()

		rec := recovery.NewManager(svcs.store, svcs.cache, log)
		cron, err := rec.StartMaintenance(recovery.MaintenanceConfig{
			Schedule:    maintenanceSchedule,
			JobMaxAge:   reapAge,
			CacheMaxAge: cacheMaxAge,
		})
		if err != nil {
			return fmt.Errorf("failed to schedule maintenance: %w", err)
		}
		defer cron.Stop()

		srv := server.New(svcs.store, svcs.engine, rec, svcs.monitor, svcs.ollama, log)

		errc := make(chan error, 1)
		go func() {
			log.Info("http server listening", zap.String("addr", serveAddr))
			errc <- srv.ListenAndServe(serveAddr)
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errc:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case sig := <-stop:
			log.Info("shutting down", zap.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":5001", "listen address")
	serveCmd.Flags().DurationVar(&serveChunkInterval, "chunk-interval", time.Second, "pacing delay between chunks")
	serveCmd.Flags().StringVar(&maintenanceSchedule, "maintenance-schedule", "0 3 * * *", "cron schedule for the cleanup pass")
	serveCmd.Flags().DurationVar(&reapAge, "reap-age", 7*24*time.Hour, "delete failed jobs older than this")
	serveCmd.Flags().DurationVar(&cacheMaxAge, "cache-max-age", 30*24*time.Hour, "evict cache entries unused for this long")

	rootCmd.AddCommand(serveCmd)
}
