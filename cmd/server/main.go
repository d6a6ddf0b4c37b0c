package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Relay/internal/adapters/codec"
	router "github.com/dkeye/Relay/internal/adapters/http"
	"github.com/dkeye/Relay/internal/adapters/udp"
	"github.com/dkeye/Relay/internal/adapters/ws"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/credential"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	kind, err := cfg.TransportKind()
	if err != nil {
		log.Fatal().Err(err).Msg("unsupported transport")
	}

	secret := cfg.Secret
	if secret == "" {
		log.Warn().Msg("no secret configured, generated a random one; credentials will not survive a restart")
		secret = credential.RandomSecret()
	}
	store := app.NewStore(credential.NewIssuer(secret, cfg.CredentialTTL))

	wire, err := codec.ForTransport(kind, cfg.BinaryFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build codec")
	}

	var (
		transport core.Transport
		udpServer *udp.Server
		wsServer  *ws.Server
	)
	switch kind {
	case domain.TransportUDP:
		udpServer, err = udp.Listen(cfg.GameAddr(), wire)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to bind game port")
		}
		transport = udpServer
	default:
		wsServer = ws.NewServer(kind, wire, store, ws.Options{ReadLimit: cfg.ReadLimit, PingPeriod: cfg.PingPeriod})
		transport = wsServer
	}

	relay := orch.New(store, transport, wire, cfg.IdleTimeout, cfg.IdleCheckInterval)

	r := router.SetupRouter(ctx, cfg, store, wsServer, relay)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		log.Info().Str("addr", srv.Addr).Str("transport", string(kind)).Str("codec", wire.Name()).Msg("Relay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	})
	if udpServer != nil {
		wg.Go(func() {
			if err := udpServer.Serve(ctx, relay); err != nil {
				log.Error().Err(err).Msg("datagram server error")
				cancel()
			}
		})
	}
	wg.Go(func() { relay.RunEviction(ctx) })

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	wg.Wait()
	log.Info().Msg("Server exited gracefully")
}
