package cloud

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/ports"
)

type TokenClient struct {
	API            API
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

var _ ports.TokenClient = TokenClient{}

type tokenRequest struct {
	DeviceID   string `json:"deviceId"`
	SecretHash string `json:"secretHash"`
	Identity   string `json:"identity,omitempty"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	AuthToken string `json:"auth_token"`
}

func (c TokenClient) RequestToken(ctx context.Context, req domain.TokenRequest) (string, error) {
	if strings.TrimSpace(string(req.DeviceID)) == "" {
		return "", fmt.Errorf("device id is required")
	}

	endpoint, err := buildAPIURL(c.API.BaseURL, c.API.TokenPath)
	if err != nil {
		return "", err
	}

	transport := client{HTTPClient: c.HTTPClient, RequestTimeout: c.RequestTimeout}
	requestCtx, cancel := transport.requestContext(ctx, defaultRequestTimeout)
	defer cancel()

	var payload tokenResponse
	err = transport.postJSON(requestCtx, endpoint, nil, tokenRequest{
		DeviceID:   string(req.DeviceID),
		SecretHash: req.SecretHash,
		Identity:   req.Identity,
	}, &payload)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}

	token := payload.Token
	if token == "" {
		token = payload.AuthToken
	}
	if strings.TrimSpace(token) == "" {
		return "", domain.ErrTokenMissing
	}

	return token, nil
}
