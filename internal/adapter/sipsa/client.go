package sipsa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/couchcryptid/sipsa-price-etl/internal/config"
	"github.com/couchcryptid/sipsa-price-etl/internal/domain"
	"github.com/couchcryptid/sipsa-price-etl/internal/observability"
)

const maxBodyBytes = 64 << 20

// Client calls SIPSA operations over SOAP.
// It implements pipeline.Fetcher.
type Client struct {
	wsdlURLs   []string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics

	svc      *Service
	endpoint string
}

// NewClient creates a SOAP client for the configured WSDL. The fallback URL is
// tried only when the primary WSDL cannot be fetched.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	urls := []string{cfg.WSDLURL}
	if cfg.FallbackWSDLURL != "" && cfg.FallbackWSDLURL != cfg.WSDLURL {
		urls = append(urls, cfg.FallbackWSDLURL)
	}
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout

	return &Client{
		wsdlURLs: urls,
		httpClient: &http.Client{
			Timeout:   cfg.ReadTimeout,
			Transport: transport,
		},
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		logger:     logger,
		metrics:    metrics,
	}
}

// Connect fetches and parses the WSDL, falling back to the next URL when one
// cannot be reached. It is a no-op once connected.
func (c *Client) Connect(ctx context.Context) error {
	if c.svc != nil {
		return nil
	}

	var errs []error
	for i, u := range c.wsdlURLs {
		if i > 0 {
			c.logger.Warn("wsdl fetch failed, trying fallback", "url", u, "error", errs[len(errs)-1])
		}
		svc, endpoint, err := c.loadWSDL(ctx, u)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		c.svc, c.endpoint = svc, endpoint
		c.logger.Info("wsdl loaded",
			"url", u,
			"endpoint", endpoint,
			"soap12", svc.SOAP12,
			"operations", len(svc.Operations),
		)
		return nil
	}
	return &ConnectivityError{URL: c.wsdlURLs[0], Err: errors.Join(errs...)}
}

func (c *Client) loadWSDL(ctx context.Context, wsdlURL string) (*Service, string, error) {
	body, err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, wsdlURL, nil)
	})
	if err != nil {
		return nil, "", err
	}
	svc, err := parseWSDL(bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	endpoint, err := resolveEndpoint(svc, wsdlURL)
	if err != nil {
		return nil, "", err
	}
	return svc, endpoint, nil
}

// Operations lists the operations the WSDL declares. It connects first if
// needed.
func (c *Client) Operations(ctx context.Context) ([]string, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c.svc.Operations, nil
}

// Fetch calls a parameterless operation and returns its items as raw records.
func (c *Client) Fetch(ctx context.Context, operation string) ([]domain.RawRecord, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	op, err := ResolveOperation(c.svc.Operations, operation)
	if err != nil {
		return nil, err
	}
	if op != operation {
		c.logger.Warn("operation resolved to a different name", "requested", operation, "resolved", op)
	}

	payload := buildEnvelope(c.svc.SOAP12, c.svc.TargetNamespace, op)
	body, err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		if c.svc.SOAP12 {
			req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8; action=""`)
		} else {
			req.Header.Set("Content-Type", "text/xml; charset=utf-8")
			req.Header.Set("SOAPAction", `""`)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", op, err)
	}

	records, fault, err := decodeResponse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", op, err)
	}
	if fault != nil {
		c.metrics.FetchAttempts.WithLabelValues("fault").Inc()
		return nil, fmt.Errorf("call %s: %w", op, fault)
	}
	return records, nil
}

// doWithRetry performs a request, retrying transport errors and HTTP
// 500/502/503/504 with exponential backoff. A SOAP Fault is never retried.
// Exhausted transport retries surface as *ConnectivityError.
func (c *Client) doWithRetry(ctx context.Context, newReq func(context.Context) (*http.Request, error)) ([]byte, error) {
	var (
		body   []byte
		target string
	)
	attempt := func() error {
		req, err := newReq(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		target = req.URL.String()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return &ConnectivityError{URL: target, Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return &ConnectivityError{URL: target, Err: fmt.Errorf("read body: %w", err)}
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body = data
			return nil
		}
		if fault := decodeFault(data); fault != nil {
			c.metrics.FetchAttempts.WithLabelValues("fault").Inc()
			return backoff.Permanent(fault)
		}
		statusErr := newStatusError(resp.StatusCode, data)
		switch resp.StatusCode {
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return statusErr
		default:
			return backoff.Permanent(statusErr)
		}
	}

	err := backoff.RetryNotify(attempt, c.newBackOff(ctx), func(err error, wait time.Duration) {
		c.metrics.FetchAttempts.WithLabelValues("retry").Inc()
		c.logger.Warn("request failed, retrying", "url", target, "wait", wait, "error", err)
	})
	if err != nil {
		var fault *FaultError
		if !errors.As(err, &fault) {
			c.metrics.FetchAttempts.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	c.metrics.FetchAttempts.WithLabelValues("success").Inc()
	return body, nil
}

// newBackOff returns the retry schedule: initial wait c.backoff, doubling,
// at most c.maxRetries retries, cancelled with ctx.
func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.backoff
	expo.Multiplier = 2
	expo.MaxInterval = 30 * time.Second
	expo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.maxRetries)), ctx)
}
