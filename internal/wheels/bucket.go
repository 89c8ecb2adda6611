// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package wheels

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Object describes a stored artifact.
type Object struct {
	Name     string
	Metadata map[string]string
}

// UploadOptions are the attributes set on an uploaded object.
type UploadOptions struct {
	Metadata     map[string]string
	ContentType  string
	CacheControl string
}

// Bucket is the object store holding the artifacts.
type Bucket interface {
	// Attrs returns the object, or nil when it does not exist.
	Attrs(ctx context.Context, name string) (*Object, error)
	// List returns the objects under prefix, sorted by name.
	List(ctx context.Context, prefix string) ([]Object, error)
	Upload(ctx context.Context, name string, r io.Reader, opts UploadOptions) error
	// PublicURL is the base URL artifacts are served from.
	PublicURL() string
}

// GCSBucket stores artifacts in a google cloud storage bucket.
type GCSBucket struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	publicURL string
}

// NewGCSBucket creates a bucket handle. An empty credentials file uses the
// application default credentials.
func NewGCSBucket(ctx context.Context, name, publicURL, credentialsFile string) (*GCSBucket, error) {
	if name == "" {
		return nil, errors.New("invalid bucket name (empty)")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}
	if publicURL == "" {
		publicURL = "https://storage.googleapis.com/" + name
	}
	return &GCSBucket{
		client:    client,
		bucket:    client.Bucket(name),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// Attrs implements Bucket.
func (b *GCSBucket) Attrs(ctx context.Context, name string) (*Object, error) {
	attrs, err := b.bucket.Object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "attrs %s", name)
	}
	return &Object{Name: attrs.Name, Metadata: attrs.Metadata}, nil
}

// List implements Bucket.
func (b *GCSBucket) List(ctx context.Context, prefix string) ([]Object, error) {
	var objs []Object
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s", prefix)
		}
		objs = append(objs, Object{Name: attrs.Name, Metadata: attrs.Metadata})
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Name < objs[j].Name })
	return objs, nil
}

// Upload implements Bucket.
func (b *GCSBucket) Upload(ctx context.Context, name string, r io.Reader, opts UploadOptions) error {
	wc := b.bucket.Object(name).NewWriter(ctx)
	wc.Metadata = opts.Metadata
	wc.ContentType = opts.ContentType
	wc.CacheControl = opts.CacheControl
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return errors.Wrapf(err, "writing %s", name)
	}
	if err := wc.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", name)
	}
	return nil
}

// PublicURL implements Bucket.
func (b *GCSBucket) PublicURL() string {
	return b.publicURL
}

// Close releases the storage client.
func (b *GCSBucket) Close() error {
	return b.client.Close()
}

// MemBucket is an in memory Bucket.
type MemBucket struct {
	url     string
	objects map[string]memObject
	uploads []string
	sync.Mutex
}

type memObject struct {
	data []byte
	opts UploadOptions
}

// NewMemBucket creates an empty in memory bucket served from url.
func NewMemBucket(url string) *MemBucket {
	return &MemBucket{url: strings.TrimSuffix(url, "/"), objects: map[string]memObject{}}
}

// Put stores an object without recording it as an upload.
func (b *MemBucket) Put(name string, metadata map[string]string) {
	b.Lock()
	defer b.Unlock()
	b.objects[name] = memObject{opts: UploadOptions{Metadata: metadata}}
}

// Attrs implements Bucket.
func (b *MemBucket) Attrs(ctx context.Context, name string) (*Object, error) {
	b.Lock()
	defer b.Unlock()
	o, ok := b.objects[name]
	if !ok {
		return nil, nil
	}
	return &Object{Name: name, Metadata: o.opts.Metadata}, nil
}

// List implements Bucket.
func (b *MemBucket) List(ctx context.Context, prefix string) ([]Object, error) {
	b.Lock()
	defer b.Unlock()
	var objs []Object
	for name, o := range b.objects {
		if strings.HasPrefix(name, prefix) {
			objs = append(objs, Object{Name: name, Metadata: o.opts.Metadata})
		}
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Name < objs[j].Name })
	return objs, nil
}

// Upload implements Bucket.
func (b *MemBucket) Upload(ctx context.Context, name string, r io.Reader, opts UploadOptions) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	b.Lock()
	defer b.Unlock()
	b.objects[name] = memObject{data: buf.Bytes(), opts: opts}
	b.uploads = append(b.uploads, name)
	return nil
}

// PublicURL implements Bucket.
func (b *MemBucket) PublicURL() string {
	return b.url
}

// Uploads returns the names written through Upload, in order.
func (b *MemBucket) Uploads() []string {
	b.Lock()
	defer b.Unlock()
	return append([]string{}, b.uploads...)
}

// Content returns the data and options of an object.
func (b *MemBucket) Content(name string) ([]byte, UploadOptions, bool) {
	b.Lock()
	defer b.Unlock()
	o, ok := b.objects[name]
	return o.data, o.opts, ok
}
