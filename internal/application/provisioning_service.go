package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/ports"
)

// ProvisioningService manages registered devices and the cloud token that
// keys their challenge responses.
type ProvisioningService struct {
	devices ports.DeviceRepository
	store   ports.SecretStore
	tokens  ports.TokenClient
	logger  *slog.Logger
}

func NewProvisioningService(devices ports.DeviceRepository, store ports.SecretStore, tokens ports.TokenClient, logger *slog.Logger) *ProvisioningService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &ProvisioningService{
		devices: devices,
		store:   store,
		tokens:  tokens,
		logger:  logger,
	}
}

func (s *ProvisioningService) AddDevice(ctx context.Context, device domain.Device) error {
	device.ID = domain.DeviceID(strings.TrimSpace(string(device.ID)))
	device.Label = strings.TrimSpace(device.Label)
	device.SecretHash = strings.TrimSpace(device.SecretHash)
	device.Identity = strings.TrimSpace(device.Identity)

	if err := device.Validate(); err != nil {
		return fmt.Errorf("validate device: %w", err)
	}

	if err := s.devices.Save(ctx, device); err != nil {
		return fmt.Errorf("save device: %w", err)
	}

	return nil
}

func (s *ProvisioningService) ListDevices(ctx context.Context) ([]domain.Device, error) {
	devices, err := s.devices.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	return devices, nil
}

func (s *ProvisioningService) GetDevice(ctx context.Context, id domain.DeviceID) (domain.Device, error) {
	device, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return domain.Device{}, fmt.Errorf("get device by id: %w", err)
	}

	return device, nil
}

// ResolveKey returns the HMAC key for the device, using the cached token when
// present and fetching a fresh one otherwise. A fetched token that cannot be
// cached is still returned.
func (s *ProvisioningService) ResolveKey(ctx context.Context, id domain.DeviceID) ([]byte, error) {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	cached, err := s.store.Get(ctx, device.TokenSecretKey())
	switch {
	case err == nil && strings.TrimSpace(cached) != "":
		return domain.DecodeTokenKey(cached), nil
	case err != nil && ctx.Err() != nil:
		return nil, fmt.Errorf("get cached token: %w", ctx.Err())
	case err != nil:
		s.logger.Debug("token cache miss", "device", device.ID, "error", err)
	}

	token, err := s.requestToken(ctx, device)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, device.TokenSecretKey(), token); err != nil {
		s.logger.Warn("cache device token", "device", device.ID, "error", err)
	}

	return domain.DecodeTokenKey(token), nil
}

// RefreshToken fetches a new token from the cloud and replaces the cached one.
func (s *ProvisioningService) RefreshToken(ctx context.Context, id domain.DeviceID) (string, error) {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return "", err
	}

	token, err := s.requestToken(ctx, device)
	if err != nil {
		return "", err
	}

	if err := s.store.Put(ctx, device.TokenSecretKey(), token); err != nil {
		return "", fmt.Errorf("store device token: %w", err)
	}

	return token, nil
}

func (s *ProvisioningService) ClearToken(ctx context.Context, id domain.DeviceID) error {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, device.TokenSecretKey()); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
		return fmt.Errorf("delete device token: %w", err)
	}

	return nil
}

func (s *ProvisioningService) requestToken(ctx context.Context, device domain.Device) (string, error) {
	token, err := s.tokens.RequestToken(ctx, domain.TokenRequest{
		DeviceID:   device.ID,
		SecretHash: device.SecretHash,
		Identity:   device.Identity,
	})
	if err != nil {
		return "", fmt.Errorf("request device token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("request device token: %w", domain.ErrTokenMissing)
	}

	return strings.TrimSpace(token), nil
}
