package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these keys
// consistently across all log statements for log aggregation and
// querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Upload domain
	// ========================================================================
	KeyOwnerID     = "owner_id"     // authenticated upload owner
	KeyFileID      = "file_id"      // Catalog file ID
	KeyUploadID    = "upload_id"    // Multipart upload session ID
	KeyPartNumber  = "part_number"  // 1-based part sequence number
	KeyObjectKey   = "object_key"   // Object store key
	KeyGeneration  = "generation"   // Scanner's active generation
	KeyBytes       = "bytes"        // Byte count moved
	KeyChecksum    = "checksum"     // SHA-256 checksum hex

	// ========================================================================
	// Client Identification
	// ========================================================================
	KeyClientIP = "client_ip" // Client IP address

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code
	KeyOperation  = "operation"   // Sub-operation type for complex operations

	// ========================================================================
	// Storage Backend
	// ========================================================================
	KeyStoreName  = "store_name"  // Named store identifier
	KeyStoreType  = "store_type"  // Store type: memory, s3, postgres, redis
	KeyBucket     = "bucket"      // Cloud bucket name (S3)
	KeyKey        = "key"         // Object key in cloud storage
	KeyRegion     = "region"      // Cloud region
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts

	// ========================================================================
	// HTTP
	// ========================================================================
	KeyRequestID = "request_id" // chi request ID
	KeyMethod    = "method"     // HTTP method
	KeyPath      = "path"       // HTTP request path
	KeyStatus    = "status"     // HTTP response status code
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// OwnerID returns a slog.Attr for the upload owner.
func OwnerID(id string) slog.Attr {
	return slog.String(KeyOwnerID, id)
}

// FileID returns a slog.Attr for the catalog file ID.
func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

// UploadID returns a slog.Attr for the multipart upload session ID.
func UploadID(id string) slog.Attr {
	return slog.String(KeyUploadID, id)
}

// PartNumber returns a slog.Attr for a part's sequence number.
func PartNumber(n int) slog.Attr {
	return slog.Int(KeyPartNumber, n)
}

// ObjectKey returns a slog.Attr for the object store key.
func ObjectKey(key string) slog.Attr {
	return slog.String(KeyObjectKey, key)
}

// Generation returns a slog.Attr for the scanner's active generation.
func Generation(gen int) slog.Attr {
	return slog.Int(KeyGeneration, gen)
}

// Bytes returns a slog.Attr for a byte count.
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// Checksum returns a slog.Attr for a SHA-256 checksum hex string.
func Checksum(sum string) slog.Attr {
	return slog.String(KeyChecksum, sum)
}

// ClientIP returns a slog.Attr for client IP address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Operation returns a slog.Attr for a sub-operation type.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// StoreName returns a slog.Attr for a named store identifier.
func StoreName(name string) slog.Attr {
	return slog.String(KeyStoreName, name)
}

// StoreType returns a slog.Attr for the store implementation type.
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// Bucket returns a slog.Attr for the S3 bucket name.
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Key returns a slog.Attr for an object key in cloud storage.
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Region returns a slog.Attr for the cloud region.
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// Attempt returns a slog.Attr for the retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry attempts.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}
