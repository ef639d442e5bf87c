package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/lockpad/internal/adapters/radio/link"
	"github.com/bnema/lockpad/internal/application"
	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/infra/tracer"
	"github.com/bnema/lockpad/internal/ports"
)

const keyRetryInterval = 30 * time.Second

func newServeCmd(app *app) *cobra.Command {
	var (
		deviceID    string
		listenAddr  string
		noAdvertise bool
		noKey       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the peripheral until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracer, err := tracer.Setup(ctx, app.cfg.Trace)
			if err != nil {
				return fmt.Errorf("setup tracer: %w", err)
			}
			defer func() { _ = shutdownTracer(context.Background()) }()

			device, err := resolveDevice(ctx, app, deviceID)
			if err != nil {
				return err
			}

			var key []byte
			retryKey := false
			if !noKey {
				key, err = app.provisioning.ResolveKey(ctx, device.ID)
				if err != nil {
					app.logger.Warn("device key unavailable; serving sentinel responses", "device", device.ID, "error", err)
					retryKey = true
				}
			}

			if listenAddr == "" {
				listenAddr = app.cfg.Link.ListenAddr
			}
			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", listenAddr, err)
			}

			p := newPeripheral(app, device, key)
			if retryKey {
				go p.retryKey(ctx, keyRetryInterval)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "lockpad serving device %s on %s\n", device.ID, ln.Addr())

			return p.run(ctx, ln, app.cfg.Advertise.Enabled && !noAdvertise)
		},
	}

	cmd.Flags().StringVar(&deviceID, "device", "", "Device ID (defaults to the only configured device)")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Radio link listen address (defaults to link.listen_addr)")
	cmd.Flags().BoolVar(&noAdvertise, "no-advertise", false, "Do not announce the peripheral over mDNS")
	cmd.Flags().BoolVar(&noKey, "no-key", false, "Skip token resolution and serve sentinel responses")

	return cmd
}

// peripheral is the set of components one serve run drives.
type peripheral struct {
	app        *app
	device     domain.Device
	registry   *application.SessionRegistry
	endpoint   *application.Endpoint
	monitor    *application.ExpiryMonitor
	dispatcher *application.LockDispatcher
	status     *application.StatusQuery
}

func newPeripheral(app *app, device domain.Device, key []byte) *peripheral {
	clock := ports.SystemClock{}
	log := app.logger.With("device", device.ID)

	registry := application.NewSessionRegistry()
	registry.OnUnlockChange(func(unlocked bool) {
		log.Info("unlock state changed", "unlocked", unlocked)
	})

	dispatcher := application.NewLockDispatcher(app.lockNotifier, device, clock, application.LockDispatcherConfig{
		Workers:       app.cfg.Lock.Workers,
		QueueSize:     app.cfg.Lock.QueueSize,
		RatePerSecond: app.cfg.Lock.RatePerSec,
	}, log)

	monitor := application.NewExpiryMonitor(registry, dispatcher, clock, application.ExpiryMonitorConfig{
		Threshold: app.cfg.Expiry.Threshold,
		Interval:  app.cfg.Expiry.Interval,
	}, log)

	endpoint := application.NewEndpoint(key, registry, clock, log,
		application.WithAssemblyTimeout(app.cfg.Expiry.AssemblyTimeout),
	)

	return &peripheral{
		app:        app,
		device:     device,
		registry:   registry,
		endpoint:   endpoint,
		monitor:    monitor,
		dispatcher: dispatcher,
		status:     application.NewStatusQuery(device, registry, monitor, endpoint, clock),
	}
}

// run serves the radio link on ln until ctx is cancelled. Advertising
// failures are logged and do not stop the peripheral.
func (p *peripheral) run(ctx context.Context, ln net.Listener, advertise bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := p.app.logger

	p.dispatcher.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = p.monitor.Run(ctx)
	}()

	if advertise {
		adv, err := p.advertisement(ln)
		if err != nil {
			log.Warn("advertising disabled", "error", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := p.app.advertiser.Advertise(ctx, adv); err != nil {
					log.Warn("advertise peripheral", "error", err)
				}
			}()
		}
	}

	server := link.NewServer(p.endpoint, p.status.Status, log)
	err := server.Serve(ctx, ln)

	cancel()
	wg.Wait()
	p.dispatcher.Stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve radio link: %w", err)
	}
	return nil
}

// retryKey keeps requesting the device key until it succeeds or ctx ends,
// then installs it on the endpoint.
func (p *peripheral) retryKey(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		key, err := p.app.provisioning.ResolveKey(ctx, p.device.ID)
		if err != nil {
			p.app.logger.Debug("device key still unavailable", "device", p.device.ID, "error", err)
			continue
		}

		p.endpoint.SetKey(key)
		p.app.logger.Info("device key installed", "device", p.device.ID)
		return
	}
}

func (p *peripheral) advertisement(ln net.Listener) (domain.Advertisement, error) {
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return domain.Advertisement{}, fmt.Errorf("unexpected listener address %s", ln.Addr())
	}

	data, err := hex.DecodeString(p.app.cfg.Advertise.Data)
	if err != nil {
		return domain.Advertisement{}, fmt.Errorf("decode advertise.data: %w", err)
	}

	return domain.Advertisement{
		LocalName:        p.app.cfg.Advertise.LocalName,
		CompanyID:        p.app.cfg.Advertise.CompanyID,
		ManufacturerData: data,
		ServiceUUID:      domain.ServiceUUID,
		Port:             addr.Port,
	}, nil
}
