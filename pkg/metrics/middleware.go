// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-envelope.
//
// go-envelope is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const (
	// Protocol identifiers
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
	ProtocolMQTT = "mqtt"
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware records request count, latency and in-flight requests.
//
//	router := chi.NewRouter()
//	router.Use(metrics.HTTPMiddleware)
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		IncrementActiveConnections(ProtocolHTTP)
		defer DecrementActiveConnections(ProtocolHTTP)

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		RecordHTTPRequest(r.Method, strconv.Itoa(wrapper.statusCode), time.Since(start).Seconds())
	})
}

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// GRPCUnaryServerInterceptor records gRPC request count and latency.
//
//	server := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(metrics.GRPCUnaryServerInterceptor(), envelopeInterceptor),
//	)
func GRPCUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !IsEnabled() {
			return handler(ctx, req)
		}

		start := time.Now()
		IncrementActiveConnections(ProtocolGRPC)
		defer DecrementActiveConnections(ProtocolGRPC)

		resp, err := handler(ctx, req)

		RecordGRPCRequest(info.FullMethod, status.Code(err).String(), time.Since(start).Seconds())
		return resp, err
	}
}

// ConnectionTracker tracks a long-lived connection for protocols without
// middleware support, such as an MQTT session.
//
//	tracker := metrics.NewConnectionTracker(metrics.ProtocolMQTT)
//	defer tracker.Close()
type ConnectionTracker struct {
	protocol string
	started  time.Time
	closed   atomic.Bool
}

// NewConnectionTracker increments the active connection gauge for protocol.
func NewConnectionTracker(protocol string) *ConnectionTracker {
	IncrementActiveConnections(protocol)
	return &ConnectionTracker{protocol: protocol, started: time.Now()}
}

// Close decrements the gauge once; later calls are no-ops.
func (ct *ConnectionTracker) Close() {
	if ct.closed.CompareAndSwap(false, true) {
		DecrementActiveConnections(ct.protocol)
	}
}

// Duration returns the time elapsed since the connection was established.
func (ct *ConnectionTracker) Duration() time.Duration {
	return time.Since(ct.started)
}
