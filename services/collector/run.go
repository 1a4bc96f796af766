package collector

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// OpenStore returns the SQLite store when DBPath is set, else memory.
func OpenStore(cfg Config) (Store, error) {
	if cfg.DBPath == "" {
		return NewMemoryStore(cfg.History), nil
	}
	return OpenSQLite(cfg.DBPath, cfg.History)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"addr", cfg.Addr,
		"history", cfg.History,
		"db", cfg.DBPath,
		"mqttBroker", cfg.MQTT.Broker,
	)

	store, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("store close", "error", err)
		}
	}()

	var pub Publisher
	if cfg.MQTT.Broker != "" {
		fwd := NewForwarder(cfg.MQTT, logger)
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := fwd.Connect(connectCtx)
		cancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing, will retry)", "error", err)
		}
		defer fwd.Disconnect()
		pub = fwd
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewServer(store, pub, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
