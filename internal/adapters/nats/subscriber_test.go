package natsadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirtio/soilmap/internal/core/domain"
)

func TestDecodeClick(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    domain.Coordinate
		wantErr bool
	}{
		{name: "valid", body: `{"lat":37.7749,"lng":-122.4194}`, want: domain.Coordinate{Lat: 37.7749, Lng: -122.4194}},
		{name: "zero is a real coordinate", body: `{"lat":0,"lng":0}`, want: domain.Coordinate{}},
		{name: "extra fields ignored", body: `{"lat":1,"lng":2,"source":"web"}`, want: domain.Coordinate{Lat: 1, Lng: 2}},
		{name: "missing lng", body: `{"lat":1}`, wantErr: true},
		{name: "not json", body: `lat=1&lng=2`, wantErr: true},
		{name: "wrong type", body: `{"lat":"1","lng":2}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClick([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
