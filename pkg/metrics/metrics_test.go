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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMetricsEnabled(t *testing.T) {
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordOperation(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpGenerate, ComponentVerifier, StatusSuccess, 0.0001)
	RecordOperation(OpVerify, ComponentVerifier, StatusError, 0.0002)
	RecordOperation(OpVerify, ComponentVerifier, StatusError, 0.0002)

	if got := testutil.CollectAndCount(OperationsTotal); got != 2 {
		t.Errorf("Expected 2 label sets, got %d", got)
	}
	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpVerify, ComponentVerifier, StatusError)); got != 2 {
		t.Errorf("Expected verify errors = 2, got %v", got)
	}
	if got := testutil.CollectAndCount(OperationDuration); got != 2 {
		t.Errorf("Expected 2 histograms, got %d", got)
	}
}

func TestRecordWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	OperationsTotal.Reset()
	FailuresTotal.Reset()
	MQTTMessagesTotal.Reset()

	RecordOperation(OpEncrypt, ComponentEncryptor, StatusSuccess, 0.1)
	RecordFailure(OpDecrypt, ComponentEncryptor, "invalid_message")
	RecordMQTTMessage("publish", StatusSuccess)

	if got := testutil.CollectAndCount(OperationsTotal); got != 0 {
		t.Errorf("Expected 0 operations when disabled, got %d", got)
	}
	if got := testutil.CollectAndCount(FailuresTotal); got != 0 {
		t.Errorf("Expected 0 failures when disabled, got %d", got)
	}
	if got := testutil.CollectAndCount(MQTTMessagesTotal); got != 0 {
		t.Errorf("Expected 0 mqtt messages when disabled, got %d", got)
	}
}

func TestRecordFailure(t *testing.T) {
	Enable()
	FailuresTotal.Reset()

	RecordFailure(OpVerify, ComponentVerifier, "invalid_purpose")
	RecordFailure(OpVerify, ComponentVerifier, "expired")
	RecordFailure(OpVerify, ComponentVerifier, "expired")

	if got := testutil.ToFloat64(FailuresTotal.WithLabelValues(OpVerify, ComponentVerifier, "expired")); got != 2 {
		t.Errorf("Expected 2 expired failures, got %v", got)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()
	ActiveConnections.Reset()

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/messages/verify", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "401")); got != 1 {
		t.Errorf("Expected one POST 401, got %v", got)
	}
	if got := testutil.ToFloat64(ActiveConnections.WithLabelValues(ProtocolHTTP)); got != 0 {
		t.Errorf("Expected no active connections after request, got %v", got)
	}
}

func TestGRPCUnaryServerInterceptor(t *testing.T) {
	Enable()
	GRPCRequestsTotal.Reset()

	interceptor := GRPCUnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/envelope.v1.Service/Open"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.Unauthenticated, "bad envelope")
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("Expected Unauthenticated, got %v", err)
	}

	if got := testutil.ToFloat64(GRPCRequestsTotal.WithLabelValues(info.FullMethod, codes.Unauthenticated.String())); got != 1 {
		t.Errorf("Expected one Unauthenticated request, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	Enable()
	RecordFailure(OpVerify, ComponentLegacy, "invalid_signature")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "envelope_failures_total") {
		t.Error("Expected envelope_failures_total in exposition output")
	}
}

func TestConnectionTracker(t *testing.T) {
	Enable()
	ActiveConnections.Reset()

	tracker := NewConnectionTracker(ProtocolMQTT)
	if got := testutil.ToFloat64(ActiveConnections.WithLabelValues(ProtocolMQTT)); got != 1 {
		t.Errorf("Expected 1 active connection, got %v", got)
	}

	tracker.Close()
	tracker.Close()
	if got := testutil.ToFloat64(ActiveConnections.WithLabelValues(ProtocolMQTT)); got != 0 {
		t.Errorf("Expected 0 active connections after Close, got %v", got)
	}
	if tracker.Duration() < 0 {
		t.Error("Duration must not be negative")
	}
}

func TestResourceCollector(t *testing.T) {
	Enable()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := StartResourceCollector(ctx, time.Hour)
	deadline := time.Now().Add(time.Second)
	for testutil.ToFloat64(Goroutines) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	collector.Stop()

	if testutil.ToFloat64(Goroutines) == 0 {
		t.Error("Expected goroutine gauge to be populated")
	}
}
