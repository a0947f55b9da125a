package soilapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirtio/soilmap/internal/adapters/soilapi"
	"github.com/dirtio/soilmap/internal/core/domain"
)

func TestClient_LookupSendsLonLat(t *testing.T) {
	var gotPath, gotLon, gotLat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLon = r.URL.Query().Get("lon")
		gotLat = r.URL.Query().Get("lat")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[["1","2","POLYGON ((0 0, 1 0, 1 1, 0 0))"]]}`))
	}))
	defer srv.Close()

	c := soilapi.New(srv.URL+"/", time.Second)
	resp, err := c.Lookup(context.Background(), domain.Coordinate{Lat: 37.7749, Lng: -122.4194})
	require.NoError(t, err)

	assert.Equal(t, "/soil", gotPath)
	assert.Equal(t, "-122.4194", gotLon)
	assert.Equal(t, "37.7749", gotLat)

	require.Len(t, resp.Records, 1)
	wkt, ok := resp.Records[0].WKT()
	require.True(t, ok)
	assert.Equal(t, "POLYGON ((0 0, 1 0, 1 1, 0 0))", wkt)
}

func TestClient_LookupMessageOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"No map unit polygons found for given coordinates"}`))
	}))
	defer srv.Close()

	resp, err := soilapi.New(srv.URL, time.Second).Lookup(context.Background(), domain.Coordinate{Lat: 1, Lng: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.Records)
	assert.NotEmpty(t, resp.Message)
}

func TestClient_LookupStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail":"Upstream service error: boom"}`))
	}))
	defer srv.Close()

	_, err := soilapi.New(srv.URL, time.Second).Lookup(context.Background(), domain.Coordinate{Lat: 1, Lng: 1})
	var statusErr *domain.LookupStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "Upstream service error")
}

func TestClient_LookupTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := soilapi.New(url, time.Second).Lookup(context.Background(), domain.Coordinate{Lat: 1, Lng: 1})
	var transportErr *domain.LookupTransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestClient_LookupHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := soilapi.New(srv.URL, 10*time.Second).Lookup(ctx, domain.Coordinate{Lat: 1, Lng: 1})
	var transportErr *domain.LookupTransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_LookupCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := soilapi.New("http://127.0.0.1:1", time.Second).Lookup(ctx, domain.Coordinate{Lat: 1, Lng: 1})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_LookupBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := soilapi.New(srv.URL, time.Second).Lookup(context.Background(), domain.Coordinate{Lat: 1, Lng: 1})
	assert.Error(t, err)
}
