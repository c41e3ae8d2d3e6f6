// Package telemetry wires OpenTelemetry tracing and metrics for newsrag.
//
// Spans and metrics are exported over OTLP (gRPC or HTTP/protobuf) to a
// collector. Instrumented packages call otel.Tracer and otel.Meter directly;
// New installs the providers globally so those calls start exporting.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc          # or http/protobuf
//	  sample_rate: 1.0
//	  export_interval: "15s"
//
// # Error Handling
//
// A provider that cannot be built is skipped and recorded in Health().Reasons;
// the pipeline keeps running with whatever providers did start.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "rag.Query")
//	span.End()
//	tt.AssertSpanExists(t, "rag.Query")
package telemetry
