package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for upload/download operations, following OpenTelemetry
// semantic conventions where applicable.
const (
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	AttrOwnerID   = "ditto.owner_id"
	AttrFileID    = "ditto.file_id"
	AttrUploadID  = "ditto.upload_id"
	AttrPartNum   = "ditto.part_number"
	AttrObjectKey = "ditto.object_key"
	AttrGen       = "ditto.generation"
	AttrBytes     = "ditto.bytes"

	AttrHTTPRoute  = "http.route"
	AttrHTTPMethod = "http.method"
	AttrHTTPStatus = "http.status_code"

	AttrStoreName = "store.name"
	AttrStoreType = "store.type"
	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"
	AttrRegion    = "storage.region"
)

// Span names for operations.
const (
	SpanHTTPRequest = "http.request"

	SpanUploadCreate   = "upload.create"
	SpanUploadPart     = "upload.part"
	SpanUploadComplete = "upload.complete"
	SpanUploadAbort    = "upload.abort"

	SpanObjectPut      = "object.put_part"
	SpanObjectGet      = "object.get"
	SpanObjectComplete = "object.complete_multipart"

	SpanScanTick = "scan.tick"
)

// ClientIP returns an attribute for the client IP address.
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for the full client address.
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// OwnerID returns an attribute for the upload owner.
func OwnerID(id string) attribute.KeyValue {
	return attribute.String(AttrOwnerID, id)
}

// FileID returns an attribute for the catalog file ID.
func FileID(id string) attribute.KeyValue {
	return attribute.String(AttrFileID, id)
}

// UploadID returns an attribute for the multipart upload session ID.
func UploadID(id string) attribute.KeyValue {
	return attribute.String(AttrUploadID, id)
}

// PartNumber returns an attribute for a part's 1-based sequence number.
func PartNumber(n int) attribute.KeyValue {
	return attribute.Int(AttrPartNum, n)
}

// ObjectKey returns an attribute for the object store key.
func ObjectKey(key string) attribute.KeyValue {
	return attribute.String(AttrObjectKey, key)
}

// Generation returns an attribute for the scanner's active generation.
func Generation(gen int) attribute.KeyValue {
	return attribute.Int(AttrGen, gen)
}

// Bytes returns an attribute for a byte count.
func Bytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytes, n)
}

// HTTPRoute returns an attribute for the matched chi route pattern.
func HTTPRoute(route string) attribute.KeyValue {
	return attribute.String(AttrHTTPRoute, route)
}

// HTTPMethod returns an attribute for the HTTP method.
func HTTPMethod(method string) attribute.KeyValue {
	return attribute.String(AttrHTTPMethod, method)
}

// HTTPStatus returns an attribute for the HTTP response status code.
func HTTPStatus(status int) attribute.KeyValue {
	return attribute.Int(AttrHTTPStatus, status)
}

// StoreName returns an attribute for the backing store's configured name.
func StoreName(name string) attribute.KeyValue {
	return attribute.String(AttrStoreName, name)
}

// StoreType returns an attribute identifying the store implementation
// ("s3", "postgres", "redis", "memory").
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Bucket returns an attribute for the S3 bucket name.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for the object store key.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for the storage region.
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// StartHTTPSpan starts a span for one inbound HTTP request.
func StartHTTPSpan(ctx context.Context, route, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{HTTPRoute(route), HTTPMethod(method)}
	base = append(base, attrs...)
	return Tracer().Start(ctx, fmt.Sprintf("%s %s", method, route),
		trace.WithAttributes(base...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartUploadSpan starts a span for an upload-engine operation
// (create, part, complete, abort).
func StartUploadSpan(ctx context.Context, spanName string, uploadID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{UploadID(uploadID)}
	base = append(base, attrs...)
	return Tracer().Start(ctx, spanName,
		trace.WithAttributes(base...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartObjectSpan starts a span for an object-store round trip.
func StartObjectSpan(ctx context.Context, spanName string, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{ObjectKey(key)}
	base = append(base, attrs...)
	return Tracer().Start(ctx, spanName,
		trace.WithAttributes(base...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartScanSpan starts a span for one scanner.Tick call.
func StartScanSpan(ctx context.Context, generation int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, SpanScanTick,
		trace.WithAttributes(Generation(generation)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}
