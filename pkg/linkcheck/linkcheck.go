// Package linkcheck probes whether URLs placed in outbound messages resolve.
package linkcheck

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout = 10 * time.Second
	maxParallel    = 4
)

type Result struct {
	URL        string `json:"url"`
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"statusCode,omitempty"`
	Method     string `json:"method"`
	Error      string `json:"error,omitempty"`
}

type Checker struct {
	client *resty.Client
}

func New() *Checker {
	return &Checker{
		client: resty.New().
			SetTimeout(defaultTimeout).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
			SetHeader("User-Agent", "referral-linkcheck/1"),
	}
}

// Check sends HEAD and falls back to GET when the server does not
// implement HEAD (405 or 501).
func (c *Checker) Check(ctx context.Context, url string) Result {
	res := Result{URL: url, Method: http.MethodHead}

	resp, err := c.client.R().SetContext(ctx).Head(url)
	if err == nil && (resp.StatusCode() == http.StatusMethodNotAllowed || resp.StatusCode() == http.StatusNotImplemented) {
		res.Method = http.MethodGet
		resp, err = c.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
		if err == nil {
			_ = resp.RawBody().Close()
		}
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.StatusCode = resp.StatusCode()
	res.Reachable = res.StatusCode >= 200 && res.StatusCode < 400
	return res
}

// CheckAll probes urls with bounded parallelism. Results keep the input order.
func (c *Checker) CheckAll(ctx context.Context, urls []string) []Result {
	out := make([]Result, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, u := range urls {
		g.Go(func() error {
			out[i] = c.Check(gctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
