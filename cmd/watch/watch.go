/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package watch provides the watch command for potter.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"bennypowers.dev/potter/compiler"
	"bennypowers.dev/potter/fs"
	"bennypowers.dev/potter/internal/config"
	"bennypowers.dev/potter/internal/logging"
	"bennypowers.dev/potter/internal/metrics"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/watch"
)

// UpdatePath serves the last update as JSON.
const UpdatePath = "/__potter/update"

// Cmd is the watch command.
var Cmd = &cobra.Command{
	Use:   "watch",
	Short: "Build, then rebuild incrementally on file changes",
	Long: `Watch builds the project, then watches the project root and applies each
batch of changed files as an incremental update.

With --addr, the output directory is served over HTTP together with the
prometheus metrics at /metrics and the last update payload at ` + UpdatePath + `.`,
	Example: `  # Rebuild on change
  potter watch

  # Serve the output and metrics on port 8000
  potter watch --addr :8000`,
	RunE: run,
}

func init() {
	Cmd.Flags().String("addr", "", "Address to serve the output directory and metrics on")
	Cmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before a batch of changes is applied")
	Cmd.Flags().StringSlice("ignore", nil, "Additional glob patterns to ignore (can be repeated)")

	_ = viper.BindPFlag("watch.addr", Cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("watch.debounce", Cmd.Flags().Lookup("debounce"))
	_ = viper.BindPFlag("watch.ignore", Cmd.Flags().Lookup("ignore"))
}

// update is the JSON form of an update result.
type update struct {
	Added     []module.ID `json:"added"`
	Updated   []module.ID `json:"updated"`
	Removed   []module.ID `json:"removed"`
	Immutable string      `json:"immutable"`
	Mutable   string      `json:"mutable"`
	Sync      bool        `json:"sync"`
	Resources []string    `json:"resources"`
}

func run(cmd *cobra.Command, args []string) error {
	logger := logging.New(cmd.ErrOrStderr(), viper.GetBool("verbose"))
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	c, err := compiler.New(cfg, fs.NewOSFileSystem(), logger.WithPrefix("compiler"), m)
	if err != nil {
		return err
	}
	if _, err := c.Build(ctx); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	var (
		mu   sync.Mutex
		last []byte
	)
	w, err := watch.New(watch.Config{
		Root:     cfg.Root,
		Ignore:   append(ignored(cfg), viper.GetStringSlice("watch.ignore")...),
		Debounce: viper.GetDuration("watch.debounce"),
		Logger:   logger.WithPrefix("watch"),
		OnChange: func(ctx context.Context, changed []string) error {
			result, err := c.Update(ctx, changed)
			if err != nil {
				return err
			}
			if result.IsEmpty() {
				return nil
			}
			data, err := json.Marshal(update{
				Added:     result.Added,
				Updated:   result.Updated,
				Removed:   result.Removed,
				Immutable: result.Payload.Immutable,
				Mutable:   result.Payload.Mutable,
				Sync:      result.Sync,
				Resources: result.Resources,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			last = data
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		return err
	}

	if addr := viper.GetString("watch.addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		mux.HandleFunc(UpdatePath, func(rw http.ResponseWriter, r *http.Request) {
			mu.Lock()
			data := last
			mu.Unlock()
			if data == nil {
				rw.WriteHeader(http.StatusNoContent)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_, _ = rw.Write(data)
		})
		mux.Handle("/", http.FileServer(http.Dir(cfg.OutputDir())))

		srv := &http.Server{
			Addr:              addr,
			Handler:           h2c.NewHandler(mux, &http2.Server{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("serving %s on %s", cfg.OutputDir(), addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server: %v", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("watching %s", cfg.Root)
	return w.Run(ctx)
}

// ignored keeps the watcher away from the files the build writes.
func ignored(cfg *config.Config) []string {
	var patterns []string
	for _, dir := range []string{cfg.OutputDir(), cfg.CacheDir()} {
		rel, err := filepath.Rel(cfg.Root, dir)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		patterns = append(patterns, rel, rel+"/**")
	}
	return patterns
}
