package s3

import (
	"context"
	"errors"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/objectstore"
)

func (s *Store) InitiateMultipart(ctx context.Context, key, contentType string) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := s.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", apperror.Wrap(apperror.Backend, "initiate multipart upload failed", err)
	}

	uploadID := aws.ToString(out.UploadId)

	s.sessionsMu.Lock()
	s.sessions[uploadID] = &session{}
	s.sessionsMu.Unlock()

	return uploadID, nil
}

func (s *Store) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64, checksumSHA256 string) (string, error) {
	input := &s3.UploadPartInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(int32(partNumber)),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if checksumSHA256 != "" {
		input.ChecksumSHA256 = aws.String(checksumSHA256)
	}

	out, err := s.client.UploadPart(ctx, input)
	if err != nil {
		if isBadDigest(err) {
			return "", apperror.Wrap(apperror.ChecksumMismatch, "provider rejected part checksum", err)
		}
		return "", apperror.Wrap(apperror.Backend, "upload part failed", err)
	}

	etag := aws.ToString(out.ETag)

	s.sessionsMu.RLock()
	sess, ok := s.sessions[uploadID]
	s.sessionsMu.RUnlock()
	if !ok {
		return "", apperror.New(apperror.NotFound, "upload session not found")
	}

	sess.mu.Lock()
	sess.parts = append(sess.parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(int32(partNumber)),
	})
	sess.mu.Unlock()

	return etag, nil
}

// isBadDigest recognizes the provider error codes for a content checksum
// that does not match the uploaded bytes.
func isBadDigest(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "BadDigest", "InvalidDigest", "XAmzContentChecksumMismatch":
		return true
	}
	return false
}

// CompleteMultipart assembles the object from parts, sorted ascending by
// part number regardless of upload order.
func (s *Store) CompleteMultipart(ctx context.Context, key, uploadID string, parts []objectstore.CompletedPart) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			PartNumber: aws.Int32(int32(p.PartNumber)),
			ETag:       aws.String(p.ETag),
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return aws.ToInt32(completed[i].PartNumber) < aws.ToInt32(completed[j].PartNumber)
	})

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return apperror.Wrap(apperror.Backend, "complete multipart upload failed", err)
	}

	s.sessionsMu.Lock()
	delete(s.sessions, uploadID)
	s.sessionsMu.Unlock()

	return nil
}

// AbortMultipart is idempotent: aborting an unknown upload id is not an
// error.
func (s *Store) AbortMultipart(ctx context.Context, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		var noSuchUpload *types.NoSuchUpload
		if !errors.As(err, &noSuchUpload) {
			return apperror.Wrap(apperror.Backend, "abort multipart upload failed", err)
		}
	}

	s.sessionsMu.Lock()
	delete(s.sessions, uploadID)
	s.sessionsMu.Unlock()

	return nil
}

var _ objectstore.Store = (*Store)(nil)
