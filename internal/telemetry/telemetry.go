//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the shared OpenTelemetry state of planloop-go:
// service identity, instrument handles and the helpers that record them.
// Instruments default to no-ops until telemetry/metric or telemetry/trace
// installs real providers.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// telemetry service constants.
const (
	ServiceName      = "planloop"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "planloop-go"
	InstrumentName   = "planloop.go"

	// MeterName scopes the coordination instruments.
	MeterName = "planloop.coordination"

	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// Coordinator operation names recorded on spans and counters.
const (
	OperationCreateSession    = "create_session"
	OperationJoinSession      = "join_session"
	OperationRevokeInvite     = "revoke_invite"
	OperationFinalizeSession  = "finalize_session"
	OperationArchiveInactive  = "archive_inactive"
	OperationArchiveSession   = "archive_session"
	OperationAddVenue         = "add_venue"
	OperationCastVote         = "cast_vote"
	OperationAddItineraryItem = "add_itinerary_item"
	OperationRemoveItinerary  = "remove_itinerary_item"
	OperationReorderItinerary = "reorder_itinerary"
	OperationAddComment       = "add_comment"
	OperationConnect          = "connect"
	OperationSyncState        = "sync_state"
)

// Attribute keys recorded on spans and metrics.
const (
	KeyOperation = "planloop.operation"
	KeyErrorCode = "planloop.error_code"
	KeyEventType = "planloop.event_type"
	KeySessionID = "planloop.session_id"
)

// grpcDial is a package-level variable to allow test injection of a custom
// dialer. In production, this points to grpc.Dial.
var grpcDial = grpc.Dial

var (
	// MeterProvider is the provider instruments are built from.
	MeterProvider metric.MeterProvider = noop.NewMeterProvider()

	// Meter scopes the coordination instruments.
	Meter metric.Meter = MeterProvider.Meter(MeterName)

	// OperationCnt counts coordinator operations by name and error code.
	OperationCnt metric.Int64Counter = noop.Int64Counter{}
	// OperationDuration measures coordinator operation latency in seconds.
	OperationDuration metric.Float64Histogram = noop.Float64Histogram{}
	// EventDeliveredCnt counts events enqueued to sinks.
	EventDeliveredCnt metric.Int64Counter = noop.Int64Counter{}
	// EventDroppedCnt counts events dropped because a sink queue was full.
	EventDroppedCnt metric.Int64Counter = noop.Int64Counter{}
	// ConnectionCnt tracks the number of registered sinks.
	ConnectionCnt metric.Int64UpDownCounter = noop.Int64UpDownCounter{}
)

// IncOperation counts one coordinator operation. code is empty on success.
func IncOperation(ctx context.Context, operation, code string) {
	OperationCnt.Add(ctx, 1, metric.WithAttributes(
		attribute.String(KeyOperation, operation),
		attribute.String(KeyErrorCode, code),
	))
}

// RecordOperationDuration records one coordinator operation's latency.
func RecordOperationDuration(ctx context.Context, operation string, duration time.Duration) {
	OperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(KeyOperation, operation),
	))
}

// IncEventDelivered counts one event enqueued to a sink.
func IncEventDelivered(ctx context.Context, eventType string) {
	EventDeliveredCnt.Add(ctx, 1, metric.WithAttributes(
		attribute.String(KeyEventType, eventType),
	))
}

// IncEventDropped counts one event dropped at a full sink queue.
func IncEventDropped(ctx context.Context, eventType string) {
	EventDroppedCnt.Add(ctx, 1, metric.WithAttributes(
		attribute.String(KeyEventType, eventType),
	))
}

// AddConnections adjusts the registered-sink gauge by delta.
func AddConnections(ctx context.Context, delta int64) {
	ConnectionCnt.Add(ctx, delta)
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// It connects the OpenTelemetry Collector through gRPC connection.
	// You can customize the endpoint using options or environment variables.
	conn, err := grpcDial(endpoint,
		// Note the use of insecure transport here. TLS is recommended in production.
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}

	return conn, err
}
