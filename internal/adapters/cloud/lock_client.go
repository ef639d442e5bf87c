package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/infra/tracer"
	"github.com/bnema/lockpad/internal/ports"
)

const DefaultLockTimeout = 11 * time.Second

// LockClient posts lock notifications to the cloud. The controller id is
// appended to the lock path.
type LockClient struct {
	API            API
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

var _ ports.LockNotifier = LockClient{}

type lockRequest struct {
	RCUID      string `json:"rcuId"`
	DeviceName string `json:"deviceName"`
	DeviceID   string `json:"deviceId"`
}

type lockResponse struct {
	Status string `json:"status"`
}

func (c LockClient) Lock(ctx context.Context, req domain.LockRequest) error {
	if strings.TrimSpace(string(req.ControllerID)) == "" {
		return errors.New("controller id is required")
	}

	endpoint, err := buildAPIURL(c.API.BaseURL, c.API.LockPath+url.PathEscape(string(req.ControllerID)))
	if err != nil {
		return err
	}

	ctx, span := tracer.StartSpan(ctx, "cloud.lock")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("controller", string(req.ControllerID)),
		tracer.StringAttr("request_id", req.RequestID),
	)

	transport := client{HTTPClient: c.HTTPClient, RequestTimeout: c.RequestTimeout}
	requestCtx, cancel := transport.requestContext(ctx, DefaultLockTimeout)
	defer cancel()

	headers := http.Header{}
	if req.RequestID != "" {
		headers.Set("X-Request-ID", req.RequestID)
	}

	var payload lockResponse
	err = transport.postJSON(requestCtx, endpoint, headers, lockRequest{
		RCUID:      string(req.ControllerID),
		DeviceName: req.DeviceLabel,
		DeviceID:   string(req.DeviceID),
	}, &payload)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			err = fmt.Errorf("%w: %w", domain.ErrLockRejected, statusErr)
		}
		tracer.RecordError(span, err)
		return fmt.Errorf("request lock: %w", err)
	}

	if payload.Status == "" && c.Logger != nil {
		c.Logger.WarnContext(ctx, "lock response without status", "controller", req.ControllerID)
	}
	span.SetAttributes(tracer.StringAttr("status", payload.Status))
	tracer.SetOK(span)

	return nil
}
