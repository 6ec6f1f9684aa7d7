package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixedCount int

func (f fixedCount) Count() int { return int(f) }
func (f fixedCount) Len() int   { return int(f) }

func TestCollector(t *testing.T) {
	c := NewCollector(nil, fixedCount(3), fixedCount(11))
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}

	expected := `
# HELP anomia_scratch_workspaces Request workspaces currently on disk.
# TYPE anomia_scratch_workspaces gauge
anomia_scratch_workspaces 3
# HELP anomia_words_loaded Word cards in the catalog.
# TYPE anomia_words_loaded gauge
anomia_words_loaded 11
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"anomia_scratch_workspaces", "anomia_words_loaded"); err != nil {
		t.Error(err)
	}
}

func TestCollector_NilSources(t *testing.T) {
	c := NewCollector(nil, nil, nil)
	if n := testutil.CollectAndCount(c); n != 5 {
		t.Errorf("collected %d metrics, want 5", n)
	}
}

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/words/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/words/{id}", "404"))
	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/words/"+id, nil))
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/words/{id}", "404"))
	if after-before != 3 {
		t.Errorf("counter grew by %v, want 3", after-before)
	}
}
