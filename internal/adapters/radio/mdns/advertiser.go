package mdns

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"

	"github.com/bnema/lockpad/internal/domain"
)

const (
	ServiceType = "_lockpad._tcp"
	Domain      = "local."

	DefaultBrowseTimeout = 3 * time.Second
)

type registration interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface) (registration, error) {
	server, err := zeroconf.Register(instance, service, domain, port, text, ifaces)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// Advertiser announces the peripheral on the local network over DNS-SD.
type Advertiser struct {
	logger   *slog.Logger
	register registerFunc
}

func NewAdvertiser(logger *slog.Logger) *Advertiser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Advertiser{logger: logger, register: zeroconfRegister}
}

// Advertise blocks until ctx is cancelled.
func (a *Advertiser) Advertise(ctx context.Context, adv domain.Advertisement) error {
	if strings.TrimSpace(adv.LocalName) == "" {
		return fmt.Errorf("mdns register: local name is required")
	}
	if adv.Port <= 0 {
		return fmt.Errorf("mdns register: invalid port %d", adv.Port)
	}

	server, err := a.register(adv.LocalName, ServiceType, Domain, adv.Port, adv.TXT(), nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	a.logger.Info("mdns advertising", "name", adv.LocalName, "port", adv.Port)
	<-ctx.Done()
	server.Shutdown()
	return nil
}

// Peripheral is an advertised lockpad found by Browse.
type Peripheral struct {
	Address       string
	Advertisement domain.Advertisement
}

// Browse collects advertised peripherals until timeout or ctx cancellation.
func Browse(ctx context.Context, timeout time.Duration) ([]Peripheral, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	var found []Peripheral
	var wg sync.WaitGroup

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			p, ok := entryToPeripheral(entry)
			if !ok {
				continue
			}
			mu.Lock()
			found = append(found, p)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(scanCtx, ServiceType, Domain, entries); err != nil {
		cancel()
		wg.Wait()
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-scanCtx.Done()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return append([]Peripheral(nil), found...), nil
}

func entryToPeripheral(entry *zeroconf.ServiceEntry) (Peripheral, bool) {
	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	default:
		return Peripheral{}, false
	}

	adv := parseTXT(entry.Text)
	adv.Port = entry.Port
	if adv.LocalName == "" {
		adv.LocalName = entry.Instance
	}

	return Peripheral{
		Address:       net.JoinHostPort(host, strconv.Itoa(entry.Port)),
		Advertisement: adv,
	}, true
}

// parseTXT is the inverse of domain.Advertisement.TXT. Unknown or malformed
// records are skipped.
func parseTXT(records []string) domain.Advertisement {
	var adv domain.Advertisement
	for _, record := range records {
		key, value, ok := strings.Cut(record, "=")
		if !ok {
			continue
		}
		switch key {
		case "name":
			adv.LocalName = value
		case "company":
			if id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(value), "0x"), 16, 16); err == nil {
				adv.CompanyID = uint16(id)
			}
		case "mfr":
			if data, err := hex.DecodeString(value); err == nil {
				adv.ManufacturerData = data
			}
		case "svc":
			if id, err := uuid.Parse(value); err == nil {
				adv.ServiceUUID = id
			}
		}
	}
	return adv
}
