package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func TestMiddlewareLogsRequest(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(log))
	r.Get("/teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if line["status"] != float64(http.StatusTeapot) || line["path"] != "/teapot" || line["method"] != "GET" {
		t.Errorf("unexpected log line %v", line)
	}
	if line["bytes"] != float64(len("short and stout")) {
		t.Errorf("bytes = %v", line["bytes"])
	}
	if id, _ := line["request_id"].(string); id == "" {
		t.Error("request id missing")
	}
}

func TestLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "nonsense")
	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Error("debug should be filtered at the default info level")
	}
	log.Info().Msg("shown")
	if buf.Len() == 0 {
		t.Error("info line missing")
	}
}
