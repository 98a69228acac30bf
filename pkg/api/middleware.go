package api

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/felixge/httpsnoop"
)

func accessLog(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		m := httpsnoop.CaptureMetrics(handler, writer, request)
		slog.Info("handled", "method", request.Method, "url", redactedURL(request.URL), "duration", m.Duration, "status", m.Code)
	})
}

// redactedURL masks the access_token query parameter so tokens never reach the logs.
func redactedURL(u *url.URL) string {
	q := u.Query()
	if !q.Has("access_token") {
		return u.String()
	}
	q.Set("access_token", "REDACTED")
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}
