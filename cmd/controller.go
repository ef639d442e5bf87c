package cmd

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/lockpad/internal/adapters/radio/link"
	"github.com/bnema/lockpad/internal/adapters/radio/mdns"
	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/infra/tracer"
)

const (
	defaultControllerID    = "CTRL001"
	defaultControllerMTU   = 247
	defaultControllerChunk = 20
)

type controllerOptions struct {
	addr       string
	discover   bool
	id         string
	mtu        int
	chunkSize  int
	keyHex     string
	deviceID   string
	timeout    time.Duration
	challenge  []byte
	randSource io.Reader
}

// controllerResult is the outcome of one simulated authentication.
type controllerResult struct {
	Challenge []byte
	Response  []byte
	MTU       int
	// Verified is nil when no key was available to check the response.
	Verified *bool
}

func newControllerCmd(app *app) *cobra.Command {
	opts := controllerOptions{randSource: rand.Reader}

	cmd := &cobra.Command{
		Use:   "controller",
		Short: "Authenticate against a peripheral as a simulated controller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			if opts.discover {
				addr, err := discoverPeripheral(ctx)
				if err != nil {
					return err
				}
				opts.addr = addr
			}
			if opts.addr == "" {
				opts.addr = app.cfg.Link.ListenAddr
			}

			key, err := controllerKey(ctx, app, opts)
			if err != nil {
				return err
			}

			result, err := authenticate(ctx, opts, key)
			if err != nil {
				return err
			}

			return writeControllerResult(cmd.OutOrStdout(), opts.addr, result)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Peripheral address (defaults to link.listen_addr)")
	cmd.Flags().BoolVar(&opts.discover, "discover", false, "Find the peripheral over mDNS")
	cmd.Flags().StringVar(&opts.id, "id", defaultControllerID, "Controller ID sent with the challenge")
	cmd.Flags().IntVar(&opts.mtu, "mtu", defaultControllerMTU, "MTU to request from the peripheral")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk", defaultControllerChunk, "Bytes per challenge write")
	cmd.Flags().StringVar(&opts.keyHex, "key", "", "Hex encoded key used to verify the response")
	cmd.Flags().StringVar(&opts.deviceID, "device", "", "Verify with the cached token of this device")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "Overall timeout")

	return cmd
}

func discoverPeripheral(ctx context.Context) (string, error) {
	found, err := mdns.Browse(ctx, mdns.DefaultBrowseTimeout)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", errors.New("no peripheral found over mDNS")
	}
	return found[0].Address, nil
}

// controllerKey returns the verification key, or nil when neither --key nor
// --device was given.
func controllerKey(ctx context.Context, app *app, opts controllerOptions) ([]byte, error) {
	switch {
	case opts.keyHex != "":
		key, err := hex.DecodeString(opts.keyHex)
		if err != nil {
			return nil, fmt.Errorf("decode --key: %w", err)
		}
		return key, nil
	case opts.deviceID != "":
		return app.provisioning.ResolveKey(ctx, domain.DeviceID(opts.deviceID))
	default:
		return nil, nil
	}
}

func authenticate(ctx context.Context, opts controllerOptions, key []byte) (controllerResult, error) {
	ctx, span := tracer.StartSpan(ctx, "controller.authenticate")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("controller", opts.id))

	challenge := opts.challenge
	if challenge == nil {
		challenge = make([]byte, domain.ChallengeLength)
		if _, err := io.ReadFull(opts.randSource, challenge); err != nil {
			return controllerResult{}, fmt.Errorf("generate challenge: %w", err)
		}
	}

	message, err := domain.EncodeMessage(challenge, domain.ControllerID(opts.id))
	if err != nil {
		return controllerResult{}, err
	}

	client, err := link.Dial(ctx, opts.addr)
	if err != nil {
		tracer.RecordError(span, err)
		return controllerResult{}, err
	}
	defer func() { _ = client.Close() }()

	mtu, err := client.ExchangeMTU(ctx, opts.mtu)
	if err != nil {
		tracer.RecordError(span, err)
		return controllerResult{}, err
	}

	if err := client.WriteChunked(ctx, domain.ChallengeCharacteristicID, message, opts.chunkSize); err != nil {
		tracer.RecordError(span, err)
		return controllerResult{}, err
	}

	response, err := client.Read(ctx, domain.ResponseCharacteristicID, 0)
	if err != nil {
		tracer.RecordError(span, err)
		return controllerResult{}, err
	}

	result := controllerResult{Challenge: challenge, Response: response, MTU: mtu}
	if len(key) > 0 {
		verified := domain.VerifyResponse(challenge, key, response)
		result.Verified = &verified
	}

	tracer.SetOK(span)
	return result, nil
}

func writeControllerResult(w io.Writer, addr string, result controllerResult) error {
	_, _ = fmt.Fprintf(w, "peripheral: %s (mtu %d)\n", addr, result.MTU)
	_, _ = fmt.Fprintf(w, "challenge:  %s\n", hex.EncodeToString(result.Challenge))
	_, _ = fmt.Fprintf(w, "response:   %s\n", hex.EncodeToString(result.Response))

	switch {
	case bytes.Equal(result.Response, domain.SentinelResponse):
		_, _ = fmt.Fprintln(w, "peripheral has no key configured")
	case len(result.Response) < domain.ResponseLength:
		_, _ = fmt.Fprintf(w, "response truncated to %d bytes; request a larger mtu\n", len(result.Response))
	}

	if result.Verified == nil {
		_, err := fmt.Fprintln(w, "verified:   skipped (no key)")
		return err
	}
	if !*result.Verified {
		return errors.New("response does not match the expected digest")
	}

	_, err := fmt.Fprintln(w, "verified:   ok")
	return err
}
