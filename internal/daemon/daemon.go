// Package daemon wires config, storage, sessions, and the HTTP surface
// into a running server with graceful shutdown.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"github.com/miikkis-gh/glassfile/internal/auth"
	"github.com/miikkis-gh/glassfile/internal/config"
	"github.com/miikkis-gh/glassfile/internal/httpapi"
	"github.com/miikkis-gh/glassfile/internal/session"
	"github.com/miikkis-gh/glassfile/internal/store"
)

const shutdownGrace = 10 * time.Second

// Run serves until ctx is cancelled or the listener fails.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	st, err := store.New(cfg.Storage.Directory, store.Options{
		Fs:                afero.NewOsFs(),
		MaxSize:           cfg.MaxFileSizeBytes(),
		AllowedExtensions: cfg.Storage.AllowedExtensions,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	if !st.Writable() {
		return errors.New("storage directory is not writable")
	}

	lifetime := time.Duration(cfg.Security.SessionLifetimeSeconds) * time.Second
	var sessions session.Store
	if cfg.Sessions.DBPath != "" {
		sq, err := session.OpenSQLite(ctx, cfg.Sessions.DBPath, lifetime, logger)
		if err != nil {
			return err
		}
		defer sq.Close()
		sessions = sq
		logger.Info("session store", "backend", "sqlite", "path", cfg.Sessions.DBPath)
	} else {
		mem := session.NewMemory(lifetime)
		defer mem.Stop()
		sessions = mem
		logger.Info("session store", "backend", "memory")
	}

	gate := auth.NewGate(auth.Policy{
		AdminPasswordHash: cfg.Security.AdminPasswordHash,
		APIKeys:           cfg.Security.APIKeys,
		IPWhitelist:       cfg.Security.IPWhitelist,
		SessionLifetime:   lifetime,
	}, sessions, logger)

	api := &httpapi.Server{
		Cfg:    cfg,
		Store:  st,
		Gate:   gate,
		Logger: logger,
	}

	addr := net.JoinHostPort(cfg.Server.Bind, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		useTLS := cfg.Server.TLS.CertPath != "" && cfg.Server.TLS.KeyPath != ""
		logger.Info("listening",
			"addr", addr,
			"tls", useTLS,
			"storage_dir", st.Root(),
			"max_file_size", cfg.MaxFileSizeBytes(),
		)
		if useTLS {
			errCh <- srv.ListenAndServeTLS(cfg.Server.TLS.CertPath, cfg.Server.TLS.KeyPath)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
