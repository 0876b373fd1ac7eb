package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrResponseTooLarge is returned when a body exceeds the configured cap.
var ErrResponseTooLarge = errors.New("response body too large")

// Request is a single-use request builder.
type Request interface {
	Get(ctx context.Context, url string) (*Response, error)
	Post(ctx context.Context, url string) (*Response, error)
	Delete(ctx context.Context, url string) (*Response, error)

	// SetBody accepts []byte, string, or a value encoded as JSON.
	SetBody(body any) Request
	SetHeader(key, value string) Request
	SetQueryParam(key, value string) Request
	// SetResult decodes a successful JSON body into result.
	SetResult(result any) Request
}

// Response is the http.Response with its body already read.
type Response struct {
	*http.Response
	body []byte
}

func (r *Response) Body() []byte { return r.body }

func (r *Response) String() string { return string(r.body) }

// IsError reports a 4xx or 5xx status.
func (r *Response) IsError() bool { return r.StatusCode >= http.StatusBadRequest }

type requestBuilder struct {
	client  *InstrumentedClient
	options requestOptions
	headers map[string]string
	query   neturl.Values
	body    any
	result  any
}

func (r *requestBuilder) Get(ctx context.Context, url string) (*Response, error) {
	return r.execute(ctx, http.MethodGet, url)
}

func (r *requestBuilder) Post(ctx context.Context, url string) (*Response, error) {
	return r.execute(ctx, http.MethodPost, url)
}

func (r *requestBuilder) Delete(ctx context.Context, url string) (*Response, error) {
	return r.execute(ctx, http.MethodDelete, url)
}

func (r *requestBuilder) SetBody(body any) Request {
	r.body = body
	return r
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	r.headers[key] = value
	return r
}

func (r *requestBuilder) SetQueryParam(key, value string) Request {
	if r.query == nil {
		r.query = neturl.Values{}
	}
	r.query.Set(key, value)
	return r
}

func (r *requestBuilder) SetResult(result any) Request {
	r.result = result
	return r
}

func (r *requestBuilder) url(path string) string {
	full := path
	if base := r.client.options.baseURL; base != "" && !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		full = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if len(r.query) == 0 {
		return full
	}
	sep := "?"
	if strings.Contains(full, "?") {
		sep = "&"
	}
	return full + sep + r.query.Encode()
}

func (r *requestBuilder) encodeBody() (io.Reader, []byte, error) {
	switch b := r.body.(type) {
	case nil:
		return nil, nil, nil
	case []byte:
		return bytes.NewReader(b), b, nil
	case string:
		return strings.NewReader(b), []byte(b), nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request body: %w", err)
		}
		if _, ok := r.headers["Content-Type"]; !ok {
			r.headers["Content-Type"] = "application/json"
		}
		return bytes.NewReader(raw), raw, nil
	}
}

func (r *requestBuilder) execute(ctx context.Context, method, path string) (*Response, error) {
	opts := r.client.options
	start := time.Now()

	ctx, span := opts.tracer.Start(ctx, "http.client "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
			attribute.String("provider", opts.providerName),
		),
	)
	defer span.End()

	fail := func(status int, err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.record(ctx, status, false, start)
		return err
	}

	bodyReader, raw, err := r.encodeBody()
	if err != nil {
		return nil, fail(0, err)
	}
	if opts.traceRequest && raw != nil {
		span.AddEvent("request.body", trace.WithAttributes(attribute.String("http.request_body", string(raw))))
	}

	req, err := http.NewRequestWithContext(ctx, method, r.url(path), bodyReader)
	if err != nil {
		return nil, fail(0, fmt.Errorf("build request: %w", err))
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			span.SetAttributes(attribute.Bool("context.cancelled", true))
		}
		return nil, fail(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, opts.maxResponseBytes+1))
	if err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("read response body: %w", err))
	}
	if int64(len(body)) > opts.maxResponseBytes {
		return nil, fail(resp.StatusCode, fmt.Errorf("%w: over %d bytes", ErrResponseTooLarge, opts.maxResponseBytes))
	}
	if opts.traceResponse {
		span.AddEvent("response.body", trace.WithAttributes(attribute.String("http.response_body", string(body))))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	response := &Response{Response: resp, body: body}

	if h := r.options.errorHandler; h != nil {
		if herr := h(resp.StatusCode, body); herr != nil {
			span.SetStatus(codes.Error, herr.Error())
			r.record(ctx, resp.StatusCode, false, start)
			return response, herr
		}
	}

	if r.result != nil && len(body) > 0 && !response.IsError() {
		if err := json.Unmarshal(body, r.result); err != nil {
			return response, fail(resp.StatusCode, fmt.Errorf("decode response body: %w", err))
		}
	}

	r.record(ctx, resp.StatusCode, !response.IsError(), start)
	return response, nil
}

func (r *requestBuilder) record(ctx context.Context, status int, success bool, start time.Time) {
	attrs := make([]attribute.KeyValue, 0, 3+len(r.options.labels))
	attrs = append(attrs,
		attribute.String("provider", r.client.options.providerName),
		attribute.Bool("success", success),
		attribute.Int("status", status),
	)
	for _, l := range r.options.labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}
	set := metric.WithAttributes(attrs...)

	r.client.metrics.requests.Add(ctx, 1, set)
	r.client.metrics.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, set)
}
