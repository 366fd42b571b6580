package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"smallbiznis-referral/pkg/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
)

var Module = fx.Module("sms", fx.Provide(New))

var ErrNotConfigured = errors.New("sms: gateway base url is empty")

type Result struct {
	MessageID string
	// Delivered is true when the gateway confirmed delivery synchronously.
	Delivered bool
}

type Sender interface {
	Send(ctx context.Context, to, body string) (Result, error)
}

type gateway struct {
	client *resty.Client
	from   string
}

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(cfg *config.Config) Sender {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.SMS.BaseURL, "/")).
		SetTimeout(cfg.SMS.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.SMS.APIKey != "" {
		client.SetAuthToken(cfg.SMS.APIKey)
	}
	return &gateway{client: client, from: cfg.SMS.From}
}

func (g *gateway) Send(ctx context.Context, to, body string) (Result, error) {
	if g.client.BaseURL == "" {
		return Result{}, ErrNotConfigured
	}

	var (
		out    sendResponse
		errOut errorResponse
	)
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(sendRequest{From: g.from, To: to, Body: body}).
		SetResult(&out).
		SetError(&errOut).
		Post("/messages")
	if err != nil {
		return Result{}, fmt.Errorf("sms gateway request failed: %w", err)
	}
	if resp.IsError() {
		if errOut.Error != "" {
			return Result{}, fmt.Errorf("sms gateway rejected message: status=%d: %s", resp.StatusCode(), errOut.Error)
		}
		return Result{}, fmt.Errorf("sms gateway rejected message: status=%d", resp.StatusCode())
	}

	return Result{
		MessageID: out.ID,
		Delivered: strings.EqualFold(out.Status, "delivered"),
	}, nil
}
