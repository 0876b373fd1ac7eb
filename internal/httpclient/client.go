package httpclient

import (
	"context"
	"fmt"
	"maps"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/fd1az/fxdesk/internal/httpclient"

	defaultRequestTimeout   = 10 * time.Second
	defaultMaxResponseBytes = 4 << 20
	defaultMaxConnsPerHost  = 8
	defaultIdleConnTimeout  = 90 * time.Second
)

// Client builds requests against one upstream.
type Client interface {
	NewRequest() Request
	NewRequestWithOptions(opts ...RequestOption) Request
}

type clientMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// InstrumentedClient traces every request through otelhttp and counts
// requests and latency per provider.
type InstrumentedClient struct {
	http    *http.Client
	options clientOptions
	metrics clientMetrics
}

func NewInstrumentedClient(opts ...ClientOption) (*InstrumentedClient, error) {
	o := clientOptions{
		providerName:     "default",
		requestTimeout:   defaultRequestTimeout,
		maxResponseBytes: defaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(instrumentationName)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		MaxIdleConnsPerHost: defaultMaxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	meter := otel.Meter(instrumentationName)
	requests, err := meter.Int64Counter("http_client_requests_total",
		metric.WithDescription("Outbound HTTP requests by provider and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}
	duration, err := meter.Float64Histogram("http_client_request_duration_ms",
		metric.WithDescription("Outbound HTTP request latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return &InstrumentedClient{
		http: &http.Client{
			Timeout: o.requestTimeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
					return otelhttptrace.NewClientTrace(ctx)
				}),
			),
		},
		options: o,
		metrics: clientMetrics{requests: requests, duration: duration},
	}, nil
}

func (c *InstrumentedClient) NewRequest() Request {
	return c.NewRequestWithOptions()
}

func (c *InstrumentedClient) NewRequestWithOptions(opts ...RequestOption) Request {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	headers := make(map[string]string, len(c.options.headers))
	maps.Copy(headers, c.options.headers)

	return &requestBuilder{
		client:  c,
		options: ro,
		headers: headers,
	}
}
