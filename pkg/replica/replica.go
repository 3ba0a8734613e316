// Package replica describes the two S3 locations kept in sync.
package replica

import (
	"fmt"
	"path"
	"strings"
)

// Tag identifies a replica in persisted state.
type Tag string

const (
	Primary   Tag = "primary"
	Secondary Tag = "secondary"
)

func (t Tag) Valid() bool {
	return t == Primary || t == Secondary
}

// Replica is one S3 location. Prefix never carries a trailing slash.
type Replica struct {
	Tag    Tag
	Bucket string
	Prefix string
}

// Parse builds a Replica from an s3://bucket/prefix URI.
func Parse(tag Tag, uri string) (Replica, error) {
	if !tag.Valid() {
		return Replica{}, fmt.Errorf("unknown replica tag %q", tag)
	}
	if !strings.HasPrefix(uri, "s3://") {
		return Replica{}, fmt.Errorf("%s: URI must start with s3://", tag)
	}

	rest := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(rest, "/", 2)

	bucket := parts[0]
	if bucket == "" {
		return Replica{}, fmt.Errorf("%s: bucket name cannot be empty", tag)
	}

	var prefix string
	if len(parts) > 1 && strings.Trim(parts[1], "/") != "" {
		prefix = strings.TrimPrefix(path.Clean(parts[1]), "/")
	}

	return Replica{Tag: tag, Bucket: bucket, Prefix: prefix}, nil
}

// ObjectKey maps a logical key to the object key inside the bucket.
func (r Replica) ObjectKey(key string) string {
	if r.Prefix == "" {
		return key
	}
	return r.Prefix + "/" + key
}

// URI formats a logical key as an s3:// URI for display.
func (r Replica) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", r.Bucket, r.ObjectKey(key))
}

func (r Replica) String() string {
	if r.Prefix == "" {
		return fmt.Sprintf("%s (s3://%s)", r.Tag, r.Bucket)
	}
	return fmt.Sprintf("%s (s3://%s/%s)", r.Tag, r.Bucket, r.Prefix)
}

// Pair holds both replicas.
type Pair struct {
	Primary   Replica
	Secondary Replica
}

// NewPair parses both URIs and validates the result.
func NewPair(primaryURI, secondaryURI string) (Pair, error) {
	p, err := Parse(Primary, primaryURI)
	if err != nil {
		return Pair{}, err
	}
	s, err := Parse(Secondary, secondaryURI)
	if err != nil {
		return Pair{}, err
	}
	pair := Pair{Primary: p, Secondary: s}
	if err := pair.Validate(); err != nil {
		return Pair{}, err
	}
	return pair, nil
}

func (p Pair) Validate() error {
	if p.Primary.Tag != Primary || p.Secondary.Tag != Secondary {
		return fmt.Errorf("replica pair has mismatched tags: %q, %q", p.Primary.Tag, p.Secondary.Tag)
	}
	if p.Primary.Bucket == p.Secondary.Bucket && overlaps(p.Primary.Prefix, p.Secondary.Prefix) {
		return fmt.Errorf("primary and secondary overlap: s3://%s/%s and s3://%s/%s",
			p.Primary.Bucket, p.Primary.Prefix, p.Secondary.Bucket, p.Secondary.Prefix)
	}
	return nil
}

func overlaps(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

// All returns the replicas in a fixed order, primary first.
func (p Pair) All() []Replica {
	return []Replica{p.Primary, p.Secondary}
}

func (p Pair) Get(tag Tag) Replica {
	if tag == Secondary {
		return p.Secondary
	}
	return p.Primary
}

func (p Pair) Other(tag Tag) Replica {
	if tag == Primary {
		return p.Secondary
	}
	return p.Primary
}
