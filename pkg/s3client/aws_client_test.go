package s3client

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func TestTrimS3KeyPrefix(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		prefix string
		want   string
	}{
		{
			name:   "normal key with prefix",
			key:    "backups/daily/db.dump",
			prefix: "backups/daily",
			want:   "db.dump",
		},
		{
			name:   "key with nested path",
			key:    "backups/daily/2026/01/db.dump",
			prefix: "backups/daily",
			want:   "2026/01/db.dump",
		},
		{
			name:   "empty prefix",
			key:    "backups/daily/db.dump",
			prefix: "",
			want:   "backups/daily/db.dump",
		},
		{
			name:   "prefix not matching",
			key:    "other/path/db.dump",
			prefix: "backups/daily",
			want:   "other/path/db.dump",
		},
		{
			name:   "exact prefix match without trailing content",
			key:    "backups/daily",
			prefix: "backups/daily",
			want:   "backups/daily", // No slash, so no trimming
		},
		{
			name:   "key is exactly prefix with slash",
			key:    "prefix/",
			prefix: "prefix",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trimS3KeyPrefix(tt.key, tt.prefix)
			if got != tt.want {
				t.Errorf("trimS3KeyPrefix(%q, %q) = %q, want %q", tt.key, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestCopySource(t *testing.T) {
	tests := []struct {
		name   string
		bucket string
		key    string
		want   string
	}{
		{
			name:   "plain key",
			bucket: "primary",
			key:    "x.txt",
			want:   "primary/x.txt",
		},
		{
			name:   "nested key",
			bucket: "primary",
			key:    "a/b c.txt",
			want:   "primary/a/b%20c.txt",
		},
		{
			name:   "plus is escaped",
			bucket: "primary",
			key:    "reports/q1+q2.csv",
			want:   "primary/reports/q1%2Bq2.csv",
		},
		{
			name:   "unreserved characters kept",
			bucket: "primary",
			key:    "a-b_c.d~e",
			want:   "primary/a-b_c.d~e",
		},
		{
			name:   "reserved characters escaped",
			bucket: "primary",
			key:    "x=1&y=2?#",
			want:   "primary/x%3D1%26y%3D2%3F%23",
		},
		{
			name:   "multibyte key",
			bucket: "primary",
			key:    "日本/データ.txt",
			want:   "primary/%E6%97%A5%E6%9C%AC/%E3%83%87%E3%83%BC%E3%82%BF.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := copySource(tt.bucket, tt.key); got != tt.want {
				t.Errorf("copySource(%q, %q) = %q, want %q", tt.bucket, tt.key, got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "typed NoSuchKey",
			err:  fmt.Errorf("operation error: %w", &types.NoSuchKey{}),
			want: true,
		},
		{
			name: "typed NotFound",
			err:  &types.NotFound{},
			want: true,
		},
		{
			name: "generic API error code",
			err:  &smithy.GenericAPIError{Code: "NoSuchKey"},
			want: true,
		},
		{
			name: "access denied",
			err:  &smithy.GenericAPIError{Code: "AccessDenied"},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.want {
				t.Errorf("isNotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
