package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	method, route string
	status        int
}

type fakeObserver struct{ got []observation }

func (f *fakeObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	f.got = append(f.got, observation{method, route, status})
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	obs := &fakeObserver{}
	r := chi.NewRouter()
	r.Use(Metrics(obs))
	r.Get("/auth/{provider}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusFound)
	})
	r.Get("/health-check/{action}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/auth/github", "/health-check/ping", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, obs.got, 3)
	assert.Equal(t, observation{"GET", "/auth/{provider}", http.StatusFound}, obs.got[0])
	assert.Equal(t, observation{"GET", "/health-check/{action}", http.StatusOK}, obs.got[1])
	assert.Equal(t, observation{"GET", "unmatched", http.StatusNotFound}, obs.got[2])
}
