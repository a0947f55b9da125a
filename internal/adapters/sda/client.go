// Package sda queries the USDA NRCS Soil Data Access tabular service.
package sda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/pkg/logging"
	"github.com/dirtio/soilmap/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/dirtio/soilmap/internal/adapters/sda")

// DefaultURL is the public Soil Data Access POST endpoint.
const DefaultURL = "https://sdmdataaccess.nrcs.usda.gov/Tabular/post.rest"

// mapUnitQuery selects every map unit polygon whose map unit intersects the point.
const mapUnitQuery = `
SELECT mup.mupolygonkey, mup.mukey, mup.mupolygongeo
FROM mupolygon AS mup
WHERE mup.mukey IN (
  SELECT mukey
  FROM SDA_Get_Mukey_from_intersection_with_WktWgs84('POINT(%s %s)')
)`

// Client implements ports.SoilDataSource.
type Client struct {
	url     string
	timeout time.Duration
	http    *fasthttp.Client
}

// New creates a Soil Data Access client.
func New(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &Client{
		url:     endpoint,
		timeout: timeout,
		http: &fasthttp.Client{
			Name:         "soilmap",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

// Query builds the SDA SQL for a point. Coordinates are formatted as plain
// decimals so no caller input reaches the query text verbatim.
func Query(lon, lat float64) string {
	return fmt.Sprintf(mapUnitQuery,
		strconv.FormatFloat(lon, 'f', -1, 64),
		strconv.FormatFloat(lat, 'f', -1, 64))
}

type tableResponse struct {
	Table [][]json.RawMessage `json:"Table"`
}

// MapUnitsAt returns every map unit polygon intersecting (lon, lat).
// Any failure talking to the service is returned as *domain.UpstreamError.
func (c *Client) MapUnitsAt(ctx context.Context, lon, lat float64) ([]domain.MapUnit, error) {
	ctx, span := tracer.Start(ctx, "sda.MapUnitsAt")
	defer span.End()

	start := time.Now()
	units, err := c.query(ctx, lon, lat)
	metrics.SDADuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SDARequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream")
		logging.FromContext(ctx).Warn("soil data access query failed", "lon", lon, "lat", lat, "error", err)
		return nil, &domain.UpstreamError{Err: err}
	}
	if len(units) == 0 {
		metrics.SDARequests.WithLabelValues("empty").Inc()
	} else {
		metrics.SDARequests.WithLabelValues("ok").Inc()
	}
	span.SetAttributes(attribute.Int("sda.rows", len(units)))
	return units, nil
}

func (c *Client) query(ctx context.Context, lon, lat float64) ([]domain.MapUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("query", Query(lon, lat))
	form.Set("format", "json")

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBodyString(form.Encode())

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, fmt.Errorf("%d %s", code, fasthttp.StatusMessage(code))
	}

	var body tableResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decodeRows(body.Table)
}

func decodeRows(rows [][]json.RawMessage) ([]domain.MapUnit, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	units := make([]domain.MapUnit, 0, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("row %d: want 3 columns, got %d", i, len(row))
		}
		units = append(units, domain.MapUnit{
			MuPolygonKey: field(row[0]),
			MuKey:        field(row[1]),
			WKT:          field(row[2]),
		})
	}
	return units, nil
}

// field renders a JSON scalar as text; SDA may return keys as strings or numbers.
func field(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
