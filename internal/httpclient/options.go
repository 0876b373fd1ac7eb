// Package httpclient is the otel-instrumented HTTP client used by every
// outbound adapter: feeds and the P2P venue.
package httpclient

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceOption selects which bodies are attached to spans.
type TraceOption string

const (
	TraceRequest  TraceOption = "request"
	TraceResponse TraceOption = "response"
)

type clientOptions struct {
	providerName     string
	baseURL          string
	requestTimeout   time.Duration
	headers          map[string]string
	maxResponseBytes int64
	tracer           trace.Tracer
	traceRequest     bool
	traceResponse    bool
}

type ClientOption func(*clientOptions)

// WithProviderName tags metrics and spans with the upstream name.
func WithProviderName(name string) ClientOption {
	return func(o *clientOptions) { o.providerName = name }
}

// WithBaseURL is prepended to relative request paths.
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) { o.baseURL = url }
}

func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) { o.requestTimeout = timeout }
}

// WithHeaders sets headers sent with every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *clientOptions) { o.headers = headers }
}

// WithMaxResponseBytes caps how much of a response body is read.
func WithMaxResponseBytes(n int64) ClientOption {
	return func(o *clientOptions) { o.maxResponseBytes = n }
}

// WithTraceOptions sets the tracer and attaches bodies to spans as events.
func WithTraceOptions(tracer trace.Tracer, opts ...TraceOption) ClientOption {
	return func(o *clientOptions) {
		o.tracer = tracer
		for _, opt := range opts {
			switch opt {
			case TraceRequest:
				o.traceRequest = true
			case TraceResponse:
				o.traceResponse = true
			}
		}
	}
}

// ResponseErrorHandler turns a response into an error. Returning nil
// accepts the response.
type ResponseErrorHandler func(statusCode int, body []byte) error

// Label is an extra metric attribute for one request.
type Label struct {
	Key   string
	Value string
}

func NewLabel(key, value string) *Label {
	return &Label{Key: key, Value: value}
}

type requestOptions struct {
	errorHandler ResponseErrorHandler
	labels       []*Label
}

type RequestOption func(*requestOptions)

func WithResponseErrorHandler(handler ResponseErrorHandler) RequestOption {
	return func(o *requestOptions) { o.errorHandler = handler }
}

func WithLabels(labels ...*Label) RequestOption {
	return func(o *requestOptions) { o.labels = labels }
}
