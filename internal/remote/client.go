// Package remote mirrors workspace files to an S3-compatible bucket and
// pulls them back, tolerating older key layouts left by previous releases.
package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key  string
	ETag string
	Size int64
}

// ObjectStore is the minimal bucket surface the sync engine needs.
type ObjectStore interface {
	// List enumerates objects under a key prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Put uploads a local file to key.
	Put(ctx context.Context, key, localPath string) error
	// Get downloads key to a local file, reporting found=false when the
	// object does not exist.
	Get(ctx context.Context, key, localPath string) (found bool, err error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Credentials configures access to the bucket. A zero value means remote
// sync is disabled.
type Credentials struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	PublicBaseURL   string `yaml:"public_base_url"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// Enabled reports whether enough fields are set to reach a bucket.
func (c Credentials) Enabled() bool {
	return c.Endpoint != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

// Validate checks that a non-empty credential set is complete.
func (c Credentials) Validate() error {
	if c == (Credentials{}) {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.AccessKeyID, validation.Required),
		validation.Field(&c.AccessKeySecret, validation.Required),
		validation.Field(&c.Bucket, validation.Required),
	)
}

// PublicURL builds the browse URL for a stored object. When no public base
// is configured, the endpoint and bucket are used directly.
func (c Credentials) PublicURL(key string) string {
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/") + "/" + escapeKey(key)
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, c.Endpoint, c.Bucket, escapeKey(key))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
