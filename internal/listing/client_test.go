package listing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"address":"10.0.0.1","port":27000,"name":"alpha","players":3,"maxPlayers":20},
			{"address":"10.0.0.2","port":27000,"name":"bravo","players":12,"maxPlayers":20},
			{"address":"10.0.0.3","port":27000,"name":"charlie","players":3,"maxPlayers":20}
		]`))
	}))
	defer srv.Close()

	records, err := New(srv.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Descending by players, ties in source order
	assert.Equal(t, "bravo", records[0].Name)
	assert.Equal(t, "alpha", records[1].Name)
	assert.Equal(t, "charlie", records[2].Name)
}

func TestFetchEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"servers":[{"address":"10.0.0.1","port":27000,"name":"alpha","players":5,"maxPlayers":20}]}`))
	}))
	defer srv.Close()

	records, err := New(srv.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "10.0.0.1:27000", records[0].Key())
	assert.Equal(t, 5, records[0].Players)
}

func TestFetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	records, err := New(srv.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
	assert.Nil(t, records)
}

func TestFetchMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	records, err := New(srv.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
	assert.Nil(t, records)
}

func TestFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // refuse connections

	records, err := New(srv.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
	assert.Nil(t, records)
}
