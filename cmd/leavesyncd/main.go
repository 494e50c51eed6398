// Command leavesyncd runs the leave-approval sync engine: the HTTP
// callback/control-plane surface, the incremental poller, and the status
// checker, all sharing the single process-wide sync lock (spec §5).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/activeindex"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/callback"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/config"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/cryptocodec"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/engine"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/httpapi"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/logging"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/store"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/synccursor"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/wecom"
)

func main() {
	log := logging.New(os.Stdout, os.Getenv("LOG_PRETTY") == "true")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	leaveStore, err := store.Open(cfg.LeaveStorePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open leave store")
	}
	activeStore, err := activeindex.Open(cfg.ActiveIndexPath, cfg.CutoffTimestamp)
	if err != nil {
		log.Fatal().Err(err).Msg("open active index")
	}
	cursorStore, err := synccursor.Open(cfg.SyncCursorPath, cfg.BaselineTimestamp)
	if err != nil {
		log.Fatal().Err(err).Msg("open sync cursor")
	}

	client := wecom.New(cfg.WeComBaseURL, cfg.CorpID, cfg.Secret, &http.Client{Timeout: 30 * time.Second}, logging.Component(log, "wecom"))

	eng, err := engine.New(cfg, logging.Component(log, "engine"), client, leaveStore, activeStore, cursorStore)
	if err != nil {
		log.Fatal().Err(err).Msg("construct engine")
	}

	// Callback credentials are optional: the poller, status checker, and
	// control plane all run without them (spec §4.9, "Drain is started iff
	// callback credentials are configured"). Once either the token or the
	// key is set, a missing or invalid key is a fatal misconfiguration.
	var cb httpapi.CallbackHandler = callback.Disabled{}
	if cfg.CallbackToken != "" || cfg.CallbackEncodingAESKey != "" {
		codec, err := cryptocodec.New(cfg.CallbackToken, cfg.CallbackEncodingAESKey, cfg.CallbackRecipient)
		if err != nil {
			log.Fatal().Err(err).Msg("construct crypto codec")
		}
		handler := callback.New(codec, eng, logging.Component(log, "callback"))
		defer handler.Close()
		cb = handler
	} else {
		log.Info().Msg("callback credentials not configured, callback endpoint disabled")
	}

	router := httpapi.NewRouter(eng, cb, logging.Component(log, "http"))
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		time.Sleep(5 * time.Second)
		eng.Start()
	}()

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	eng.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
}
