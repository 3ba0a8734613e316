package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	// maxCopyObjectSize is the largest source a single CopyObject call accepts.
	maxCopyObjectSize   int64 = 5 * 1024 * 1024 * 1024
	defaultCopyPartSize int64 = 512 * 1024 * 1024
	maxCopyParts        int64 = 10000
)

// s3API is the subset of *s3.Client used by AWSClient.
type s3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPartCopy(ctx context.Context, params *s3.UploadPartCopyInput, optFns ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

type AWSClient struct {
	client   s3API
	uploader *manager.Uploader
	retry    retryPolicy

	copyThreshold int64
	copyPartSize  int64
}

func NewAWSClient(cfg aws.Config) *AWSClient {
	client := s3.NewFromConfig(cfg)
	return &AWSClient{
		client:        client,
		uploader:      manager.NewUploader(client),
		retry:         defaultRetryPolicy(),
		copyThreshold: maxCopyObjectSize,
		copyPartSize:  defaultCopyPartSize,
	}
}

func (c *AWSClient) ListObjects(ctx context.Context, req *ListObjectsRequest) ([]ItemMetadata, error) {
	var items []ItemMetadata

	listPrefix := req.Prefix
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(req.Bucket),
		Prefix: aws.String(listPrefix),
	})

	for paginator.HasMorePages() {
		page, err := withRetry(ctx, c.retry, func() (*s3.ListObjectsV2Output, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in s3://%s/%s: %w", req.Bucket, listPrefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			items = append(items, ItemMetadata{
				Path:    trimS3KeyPrefix(*obj.Key, req.Prefix),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	return items, nil
}

func (c *AWSClient) GetObject(ctx context.Context, req *GetObjectRequest) ([]byte, error) {
	body, err := withRetry(ctx, c.retry, func() ([]byte, error) {
		resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(req.Bucket),
			Key:    aws.String(req.Key),
		})
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3://%s/%s: %w", req.Bucket, req.Key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return body, nil
}

func (c *AWSClient) PutObject(ctx context.Context, req *PutObjectRequest) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(req.Bucket),
		Key:    aws.String(req.Key),
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}

	_, err := withRetry(ctx, c.retry, func() (*manager.UploadOutput, error) {
		// The body reader is consumed by each attempt.
		input.Body = bytes.NewReader(req.Body)
		return c.uploader.Upload(ctx, input)
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}

	return nil
}

func (c *AWSClient) DeleteObject(ctx context.Context, req *DeleteObjectRequest) error {
	_, err := withRetry(ctx, c.retry, func() (*s3.DeleteObjectOutput, error) {
		return c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(req.Bucket),
			Key:    aws.String(req.Key),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// CopyObject copies server-side. Sources larger than a single CopyObject call
// allows are copied part by part with UploadPartCopy.
func (c *AWSClient) CopyObject(ctx context.Context, req *CopyObjectRequest) error {
	head, err := withRetry(ctx, c.retry, func() (*s3.HeadObjectOutput, error) {
		return c.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(req.SourceBucket),
			Key:    aws.String(req.SourceKey),
		})
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("copy source s3://%s/%s: %w", req.SourceBucket, req.SourceKey, ErrNotFound)
		}
		return fmt.Errorf("failed to head copy source: %w", err)
	}

	if aws.ToInt64(head.ContentLength) > c.copyThreshold {
		return c.multipartCopy(ctx, req, head)
	}

	_, err = withRetry(ctx, c.retry, func() (*s3.CopyObjectOutput, error) {
		return c.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(req.DestBucket),
			Key:        aws.String(req.DestKey),
			CopySource: aws.String(copySource(req.SourceBucket, req.SourceKey)),
		})
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("copy source s3://%s/%s: %w", req.SourceBucket, req.SourceKey, ErrNotFound)
		}
		return fmt.Errorf("failed to copy object: %w", err)
	}

	return nil
}

func (c *AWSClient) multipartCopy(ctx context.Context, req *CopyObjectRequest, head *s3.HeadObjectOutput) error {
	size := aws.ToInt64(head.ContentLength)
	partSize := copyPartSize(size, c.copyPartSize)

	create, err := withRetry(ctx, c.retry, func() (*s3.CreateMultipartUploadOutput, error) {
		return c.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket:      aws.String(req.DestBucket),
			Key:         aws.String(req.DestKey),
			ContentType: head.ContentType,
			Metadata:    head.Metadata,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to create multipart upload: %w", err)
	}
	uploadID := create.UploadId

	parts, err := c.copyParts(ctx, req, uploadID, size, partSize)
	if err == nil {
		_, err = withRetry(ctx, c.retry, func() (*s3.CompleteMultipartUploadOutput, error) {
			return c.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
				Bucket:          aws.String(req.DestBucket),
				Key:             aws.String(req.DestKey),
				UploadId:        uploadID,
				MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
			})
		})
		if err != nil {
			err = fmt.Errorf("failed to complete multipart upload: %w", err)
		}
	}
	if err != nil {
		// Abort even when ctx is cancelled.
		_, _ = c.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(req.DestBucket),
			Key:      aws.String(req.DestKey),
			UploadId: uploadID,
		})
		return err
	}

	return nil
}

func (c *AWSClient) copyParts(ctx context.Context, req *CopyObjectRequest, uploadID *string, size, partSize int64) ([]types.CompletedPart, error) {
	source := aws.String(copySource(req.SourceBucket, req.SourceKey))

	var parts []types.CompletedPart
	for start, number := int64(0), int32(1); start < size; start, number = start+partSize, number+1 {
		end := start + partSize - 1
		if end >= size {
			end = size - 1
		}

		partNumber := number
		rangeHeader := fmt.Sprintf("bytes=%d-%d", start, end)
		out, err := withRetry(ctx, c.retry, func() (*s3.UploadPartCopyOutput, error) {
			return c.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
				Bucket:          aws.String(req.DestBucket),
				Key:             aws.String(req.DestKey),
				UploadId:        uploadID,
				PartNumber:      aws.Int32(partNumber),
				CopySource:      source,
				CopySourceRange: aws.String(rangeHeader),
			})
		})
		if err != nil {
			return nil, fmt.Errorf("failed to copy part %d: %w", partNumber, err)
		}

		part := types.CompletedPart{PartNumber: aws.Int32(partNumber)}
		if out.CopyPartResult != nil {
			part.ETag = out.CopyPartResult.ETag
		}
		parts = append(parts, part)
	}

	return parts, nil
}

// copyPartSize grows partSize when size would otherwise need more parts than
// S3 allows in one upload.
func copyPartSize(size, partSize int64) int64 {
	if minimum := (size + maxCopyParts - 1) / maxCopyParts; partSize < minimum {
		return minimum
	}
	return partSize
}

// copySource builds the "bucket/key" value CopyObject expects. Each key
// segment is percent-encoded except the RFC 3986 unreserved characters, and
// "/" is kept as the separator. "+" must be escaped because S3 decodes it as
// a space.
func copySource(bucket, key string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.WriteString(bucket)
	b.WriteByte('/')
	for i := 0; i < len(key); i++ {
		ch := key[i]
		switch {
		case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9',
			ch == '-', ch == '_', ch == '.', ch == '~', ch == '/':
			b.WriteByte(ch)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[ch>>4])
			b.WriteByte(hex[ch&0x0F])
		}
	}
	return b.String()
}

func trimS3KeyPrefix(key, prefix string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, prefix+"/")
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
