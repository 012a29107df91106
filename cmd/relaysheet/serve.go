package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/agentworkforce/relaysheet/internal/callsheet"
	"github.com/agentworkforce/relaysheet/internal/config"
	"github.com/agentworkforce/relaysheet/internal/httpapi"
	"github.com/agentworkforce/relaysheet/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the call-event webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ln, err := net.Listen("tcp", a.cfg.Addr)
			if err != nil {
				return errors.Wrapf(err, "listen on %s", a.cfg.Addr)
			}
			return runServer(ctx, a.cfg, ln)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default "+config.DefaultAddr+")")
	cmd.Flags().String("events-token", "", "token required by /v1/events and /dashboard; empty disables both")
	return cmd
}

// runServer serves on ln until ctx is done, then drains in-flight requests.
func runServer(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	log := logger.ComponentLogger("serve")
	hub := callsheet.NewHub()
	svc, closeStore, err := openService(ctx, cfg, callsheet.ServiceOptions{
		Events: hub,
		Logger: logger.ComponentLogger("callsheet"),
	})
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer closeStore()

	handler := httpapi.NewServerWithConfig(callsheet.NewDispatcher(svc), hub, httpapi.ServerConfig{
		Mode:             cfg.Mode,
		SignatureHeader:  cfg.Signature.Header,
		TimestampHeader:  cfg.Signature.TimestampHeader,
		SignatureSecret:  cfg.Signature.Secret,
		SignatureMaxSkew: cfg.Signature.MaxSkew,
		MaxBodyBytes:     cfg.MaxBodyBytes,
		RequestTimeout:   cfg.RequestTimeout,
		EventsToken:      cfg.Events.Token,
		EventOrigins:     cfg.Events.Origins,
		Logger:           logger.ComponentLogger("httpapi"),
	})
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Infow("relaysheet listening",
		logger.FieldAddress, ln.Addr().String(),
		"mode", cfg.Mode,
		logger.FieldStore, redactDSN(cfg.Store.DSN),
		"signed", cfg.Signature.Secret != "",
		"event_feed", cfg.Events.Token != "",
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
