package s3client

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var errNotStubbed = errors.New("not stubbed")

// mockS3API records copy-related calls and delegates to optional funcs.
type mockS3API struct {
	headFunc       func(*s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
	copyFunc       func(*s3.CopyObjectInput) (*s3.CopyObjectOutput, error)
	uploadPartFunc func(*s3.UploadPartCopyInput) (*s3.UploadPartCopyOutput, error)

	copies    []*s3.CopyObjectInput
	creates   []*s3.CreateMultipartUploadInput
	parts     []*s3.UploadPartCopyInput
	completes []*s3.CompleteMultipartUploadInput
	aborts    []*s3.AbortMultipartUploadInput
}

func (m *mockS3API) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return nil, errNotStubbed
}

func (m *mockS3API) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, errNotStubbed
}

func (m *mockS3API) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.headFunc != nil {
		return m.headFunc(params)
	}
	return nil, errNotStubbed
}

func (m *mockS3API) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return nil, errNotStubbed
}

func (m *mockS3API) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	m.copies = append(m.copies, params)
	if m.copyFunc != nil {
		return m.copyFunc(params)
	}
	return &s3.CopyObjectOutput{}, nil
}

func (m *mockS3API) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	m.creates = append(m.creates, params)
	uploadID := "upload-1"
	return &s3.CreateMultipartUploadOutput{UploadId: &uploadID}, nil
}

func (m *mockS3API) UploadPartCopy(ctx context.Context, params *s3.UploadPartCopyInput, optFns ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
	m.parts = append(m.parts, params)
	if m.uploadPartFunc != nil {
		return m.uploadPartFunc(params)
	}
	return &s3.UploadPartCopyOutput{}, nil
}

func (m *mockS3API) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	m.completes = append(m.completes, params)
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (m *mockS3API) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	m.aborts = append(m.aborts, params)
	return &s3.AbortMultipartUploadOutput{}, nil
}
