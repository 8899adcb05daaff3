package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderDisabled(t *testing.T) {
	p, err := NewProvider(&Config{ServiceName: "test", Enabled: false})
	require.NoError(t, err)

	assert.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSpanHelpers(t *testing.T) {
	_, err := NewProvider(&Config{
		ServiceName:  "test",
		Enabled:      true,
		ExporterType: ExporterStdout,
		SampleRate:   1.0,
	})
	require.NoError(t, err)

	t.Run("assess span carries a trace id", func(t *testing.T) {
		ctx, span := AssessSpan(context.Background(), "d1")
		defer span.End()

		assert.NotEmpty(t, GetTraceID(ctx))
	})

	t.Run("store span accepts attributes and timing", func(t *testing.T) {
		_, span := StoreSpan(context.Background(), "save")
		defer span.End()

		done := Timed(span)
		span.SetAttribute("db.limit", 20)
		span.SetOK()
		assert.NotPanics(t, done)
	})

	t.Run("record and tune spans start", func(t *testing.T) {
		_, rs := RecordSpan(context.Background(), "d1")
		rs.End()
		_, ts := TuneSpan(context.Background())
		ts.End()
	})
}

func TestGetTraceIDWithoutSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestHTTPMiddleware(t *testing.T) {
	_, err := NewProvider(&Config{
		ServiceName:  "test",
		Enabled:      true,
		ExporterType: ExporterStdout,
		SampleRate:   1.0,
	})
	require.NoError(t, err)

	var traceID string
	h := HTTPMiddleware("test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/assess", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.NotEmpty(t, traceID, "handler should observe the request span")
}
