package sda_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirtio/soilmap/internal/adapters/sda"
	"github.com/dirtio/soilmap/internal/core/domain"
)

func TestQuery_FormatsPoint(t *testing.T) {
	q := sda.Query(-122.449871, 37.492633)
	assert.Contains(t, q, "SDA_Get_Mukey_from_intersection_with_WktWgs84('POINT(-122.449871 37.492633)')")
	assert.Contains(t, q, "SELECT mup.mupolygonkey, mup.mukey, mup.mupolygongeo")
}

func TestClient_PostsFormAndDecodesTable(t *testing.T) {
	var gotMethod, gotContentType, gotFormat, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotFormat = r.PostForm.Get("format")
		gotQuery = r.PostForm.Get("query")
		_, _ = w.Write([]byte(`{"Table":[["399359807","456385","POLYGON ((0 0, 1 0, 1 1, 0 0))"],[12,34,"POLYGON ((2 2, 3 2, 3 3, 2 2))"]]}`))
	}))
	defer srv.Close()

	units, err := sda.New(srv.URL, time.Second).MapUnitsAt(context.Background(), -122.449871, 37.492633)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.True(t, strings.HasPrefix(gotContentType, "application/x-www-form-urlencoded"))
	assert.Equal(t, "json", gotFormat)
	assert.Contains(t, gotQuery, "POINT(-122.449871 37.492633)")

	require.Len(t, units, 2)
	assert.Equal(t, domain.MapUnit{MuPolygonKey: "399359807", MuKey: "456385", WKT: "POLYGON ((0 0, 1 0, 1 1, 0 0))"}, units[0])
	assert.Equal(t, "12", units[1].MuPolygonKey)
	assert.Equal(t, "34", units[1].MuKey)
}

func TestClient_EmptyTable(t *testing.T) {
	for _, body := range []string{`{"Table":[]}`, `{}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		units, err := sda.New(srv.URL, time.Second).MapUnitsAt(context.Background(), -10, -10)
		srv.Close()
		require.NoError(t, err, body)
		assert.Empty(t, units, body)
	}
}

func TestClient_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`Invalid query`))
			},
		},
		{
			name: "short row",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"Table":[["1","2"]]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := sda.New(srv.URL, time.Second).MapUnitsAt(context.Background(), 1, 1)
			var upstream *domain.UpstreamError
			require.ErrorAs(t, err, &upstream)
			assert.True(t, strings.HasPrefix(err.Error(), "Upstream service error: "))
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := sda.New(srv.URL, 50*time.Millisecond).MapUnitsAt(context.Background(), 1, 1)
	var upstream *domain.UpstreamError
	assert.ErrorAs(t, err, &upstream)
}
