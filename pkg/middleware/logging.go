package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Dias221467/bladder/pkg/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func wrap(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// LoggingMiddleware logs every request with a request ID, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := wrap(w)
		next.ServeHTTP(rec, r)

		entry := logger.Log.WithFields(logrus.Fields{
			"requestID": requestID,
			"method":    r.Method,
			"url":       r.URL.String(),
			"ip":        r.RemoteAddr,
			"userAgent": r.UserAgent(),
			"cookies":   cookieNames(r),
			"hasAuth":   r.Header.Get("Authorization") != "",
			"status":    rec.status,
			"duration":  time.Since(start).String(),
		})

		switch {
		case rec.status >= 500:
			entry.Error("Request failed")
		case rec.status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	})
}

func cookieNames(r *http.Request) []string {
	cookies := r.Cookies()
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	return names
}
