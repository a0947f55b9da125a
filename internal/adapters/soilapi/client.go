// Package soilapi is the HTTP client for the /soil polygon lookup endpoint.
package soilapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dirtio/soilmap/internal/core/domain"
)

var tracer = otel.Tracer("github.com/dirtio/soilmap/internal/adapters/soilapi")

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 256

// Client implements ports.PolygonLookupService against GET {base}/soil?lon=&lat=.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *fasthttp.Client
}

// New creates a lookup client. timeout applies when the caller's context has
// no deadline of its own.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/soil",
		timeout:  timeout,
		http: &fasthttp.Client{
			Name:                "soilmap-resolver",
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
}

// Lookup fetches the geometry records for a coordinate.
func (c *Client) Lookup(ctx context.Context, at domain.Coordinate) (*domain.LookupResponse, error) {
	ctx, span := tracer.Start(ctx, "soilapi.Lookup")
	defer span.End()
	span.SetAttributes(attribute.Float64("click.lat", at.Lat), attribute.Float64("click.lng", at.Lng))

	if err := ctx.Err(); err != nil {
		return nil, &domain.LookupTransportError{Err: err}
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	args := req.URI().QueryArgs()
	args.Add("lon", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	args.Add("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, &domain.LookupTransportError{Err: err}
	}

	status := resp.StatusCode()
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status < 200 || status > 299 {
		body := string(resp.Body())
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		span.SetStatus(codes.Error, "status")
		return nil, &domain.LookupStatusError{StatusCode: status, Body: body}
	}

	var out domain.LookupResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	span.SetAttributes(attribute.Int("lookup.records", len(out.Records)))
	return &out, nil
}
