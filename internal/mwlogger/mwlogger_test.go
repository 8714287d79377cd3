package mwlogger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

func TestWrap_RequestID(t *testing.T) {
	var gotLogger bool
	h := wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotLogger = r.Context().Value(loggerWithRequestID{}).(zlog.Zerolog)
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"generated", ""},
		{"propagated", "req-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/variants/1", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-Id", tt.header)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			require.True(t, gotLogger)
			require.Equal(t, http.StatusTeapot, w.Code)
			if tt.header != "" {
				require.Equal(t, tt.header, w.Header().Get("X-Request-Id"))
			} else {
				require.NotEmpty(t, w.Header().Get("X-Request-Id"))
			}
		})
	}
}

func TestLoggerFromContext_Fallback(t *testing.T) {
	require.NotPanics(t, func() {
		l := LoggerFromContext(context.Background())
		l.Debug().Msg("fallback logger")
	})

	ctx := WithLogger(context.Background(), zlog.Logger.With().Str("original", "x").Logger())
	_, ok := ctx.Value(loggerWithRequestID{}).(zlog.Zerolog)
	require.True(t, ok)
}
