package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/annabot/internal/channel/whatsapp"
	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/events"
	"github.com/soyeahso/annabot/internal/gateway"
	"github.com/soyeahso/annabot/internal/llm"
	"github.com/soyeahso/annabot/internal/routing"
	"github.com/soyeahso/annabot/internal/session"
	"github.com/soyeahso/annabot/internal/store"
)

// probeTimeout bounds the startup inference check.
const probeTimeout = 30 * time.Second

func newRunCmd() *cobra.Command {
	var noGateway bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to WhatsApp and start answering messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if noGateway {
				cfg.Gateway.Enabled = false
			}
			if err := checkConfig(&cfg); err != nil {
				return err
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Inference.Probe() {
				probe(ctx, a.registry)
			}

			transport, err := whatsapp.Open(ctx, whatsapp.Config{
				DeviceStore: paths.DeviceStore(cfg),
				OSName:      cfg.WhatsApp.OSName,
				LogLevel:    cfg.Logging.WhatsApp,
			}, log)
			if err != nil {
				return err
			}
			defer transport.Close()

			bus := events.NewBus(log)
			bus.Trace()
			transport.OnEvent(bus.Publish(ctx))

			manager := session.NewManager(session.FromConfig(cfg.Session), transport, store.NewCredentialStore(a.db), log)
			manager.Wire(bus)

			router := routing.NewRouter(cfg.Routing, a.conversations, a.runner, manager, a.dedupe, log)
			router.Wire(bus)

			bus.On(domain.KindPairingCode, "qr", func(_ context.Context, evt domain.Event) error {
				showPairingCode(cmd.OutOrStdout(), evt.(domain.PairingCode))
				return nil
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return manager.Run(gctx) })
			if cfg.Gateway.Enabled {
				srv := gateway.NewServer(cfg.Gateway, manager, router, log)
				g.Go(func() error { return srv.Start(gctx) })
			}

			log.Info().
				Str("trigger", cfg.Routing.TriggerPrefix).
				Bool("gateway", cfg.Gateway.Enabled).
				Msg("annabot running")

			err = g.Wait()
			router.Wait()

			stats := router.Stats()
			log.Info().
				Int64("received", stats.Received).
				Int64("replied", stats.Replied).
				Msg("annabot stopped")

			switch {
			case errors.Is(err, session.ErrLoggedOut):
				return fmt.Errorf("%w: delete %s and run again to pair", err, paths.DeviceStore(cfg))
			case errors.Is(err, context.Canceled):
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&noGateway, "no-gateway", false, "do not start the status server")
	return cmd
}

// probe checks the inference credentials once. Failure is only a warning;
// replies fall back to the canned text until the provider recovers.
func probe(ctx context.Context, registry *llm.Registry) {
	client, err := registry.Default()
	if err != nil {
		log.Warn().Err(err).Msg("no inference provider to probe")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := llm.Probe(ctx, client)
	if err != nil {
		log.Warn().Err(err).Str("provider", client.Name()).Msg("inference probe failed")
		return
	}
	log.Info().
		Str("provider", client.Name()).
		Str("model", resp.Model).
		Dur("duration", resp.Duration).
		Msg("inference probe ok")
}

func showPairingCode(w io.Writer, code domain.PairingCode) {
	fmt.Fprintln(w, "Scan this QR code with WhatsApp (Linked devices > Link a device):")
	qrterminal.GenerateHalfBlock(code.Code, qrterminal.L, w)
	if code.Timeout > 0 {
		fmt.Fprintf(w, "Code expires in %s\n", code.Timeout.Round(time.Second))
	}
}
