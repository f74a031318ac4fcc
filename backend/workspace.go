package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	schema "github.com/mutablelogic/go-collect/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
	blob "gocloud.dev/blob"
	s3blob "gocloud.dev/blob/s3blob"
	gcerrors "gocloud.dev/gcerrors"

	// Drivers
	_ "gocloud.dev/blob/fileblob" // file:// URLs
	_ "gocloud.dev/blob/memblob"  // mem:// URLs
	_ "gocloud.dev/blob/s3blob"   // s3:// URLs
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Workspace is a named storage area backed by a blob bucket. It accounts
// usage so quota checks do not require a bucket listing per upload: the
// counters are seeded from a listing on first use and maintained on every
// put and delete.
type Workspace struct {
	*opt
	bucket       *blob.Bucket
	prefix       string // URL path used for stripping in keys
	bucketPrefix string // key prefix for bucket operations (empty for file://)

	mu        sync.Mutex
	usedBytes int64
	fileCount int64
	seeded    bool
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a workspace over a blob bucket using Go CDK.
// Supported URL schemes: s3://, file://, mem://
// Examples:
//   - "s3://my-bucket?region=us-east-1"
//   - "file://name/path/to/directory"
//   - "mem://name"
//
// For S3 URLs, you can optionally provide an aws.Config via WithAWSConfig()
// for full control over AWS SDK configuration.
func New(ctx context.Context, u string, opts ...Opt) (*Workspace, error) {
	self := new(Workspace)

	// Set the options
	if url, err := url.Parse(u); err != nil {
		return nil, err
	} else if opt, err := apply(url, opts...); err != nil {
		return nil, err
	} else {
		self.opt = opt
	}

	// Validate the workspace name (URL host) is a valid identifier
	if !types.IsIdentifier(self.url.Host) {
		return nil, fmt.Errorf("workspace name %q must be a valid identifier", self.url.Host)
	}

	// For s3/mem the URL path is a key prefix within the bucket. For
	// file:// the path is the bucket root directory, not a key prefix.
	self.prefix = strings.TrimSuffix(self.url.Path, "/")
	if self.url.Scheme != "file" {
		self.bucketPrefix = strings.TrimPrefix(self.prefix, "/")
	}

	// Open the bucket
	var bucket *blob.Bucket
	var err error

	if self.url.Scheme == "s3" && self.awsConfig != nil {
		client := s3blob.Dial(*self.awsConfig)
		bucket, err = s3blob.OpenBucket(ctx, client, self.url.Host, nil)
	} else if self.url.Scheme == "file" {
		openURL := &url.URL{Scheme: "file", Path: self.url.Path, RawQuery: self.url.RawQuery}
		bucket, err = blob.OpenBucket(ctx, openURL.String())
	} else {
		// Open at root (strip path) to avoid a PrefixedBucket
		openURL := *self.url
		openURL.Path = ""
		openURL.RawPath = ""
		bucket, err = blob.OpenBucket(ctx, openURL.String())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	self.bucket = bucket

	return self, nil
}

// Close the workspace
func (w *Workspace) Close() error {
	var result error
	if w.bucket != nil {
		result = errors.Join(result, w.bucket.Close())
		w.bucket = nil
	}

	// Return any errors
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Name returns the workspace name
func (w *Workspace) Name() string {
	return w.url.Host
}

// Plan returns the storage plan enforced by the workspace
func (w *Workspace) Plan() schema.PlanLimits {
	return w.plan
}

// Quota returns the current usage snapshot, seeding the counters from a
// bucket listing on first use.
func (w *Workspace) Quota(ctx context.Context) (snapshot *schema.QuotaSnapshot, err error) {
	// OTEL span
	child, endFunc := otel.StartSpan(w.tracer, ctx, spanName("Quota"))
	defer func() { endFunc(err) }()
	ctx = child

	if err := w.seed(ctx); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return &schema.QuotaSnapshot{
		UsedBytes:  w.usedBytes,
		LimitBytes: w.plan.LimitBytes,
		PlanKey:    w.plan.Key,
		FileCount:  w.fileCount,
	}, nil
}

// StorageInfo derives the display fields attached to upload responses from
// a usage snapshot. The warning flag is set once usage crosses the
// configured threshold of the limit.
func (w *Workspace) StorageInfo(snapshot *schema.QuotaSnapshot) *schema.StorageInfo {
	info := &schema.StorageInfo{
		UsagePercentage: snapshot.UsagePercent(),
		RemainingBytes:  snapshot.Remaining(),
	}
	if snapshot.LimitBytes > 0 {
		info.ShouldShowWarning = float64(snapshot.UsedBytes) >= w.warnThreshold*float64(snapshot.LimitBytes)
	}
	return info
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// seed initialises the usage counters from a full bucket listing. It runs
// at most once; subsequent puts and deletes maintain the counters.
func (w *Workspace) seed(ctx context.Context) error {
	w.mu.Lock()
	if w.seeded {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	var used, count int64
	iter := w.bucket.List(&blob.ListOptions{Prefix: w.listPrefix("")})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			return blobErr(err, w.Name())
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		used += obj.Size
		count++
	}

	w.mu.Lock()
	if !w.seeded {
		w.usedBytes = used
		w.fileCount = count
		w.seeded = true
	}
	w.mu.Unlock()
	return nil
}

// account applies a usage delta under the lock
func (w *Workspace) account(deltaBytes, deltaFiles int64) {
	w.mu.Lock()
	w.usedBytes += deltaBytes
	w.fileCount += deltaFiles
	if w.usedBytes < 0 {
		w.usedBytes = 0
	}
	if w.fileCount < 0 {
		w.fileCount = 0
	}
	w.mu.Unlock()
}

// storageKey converts a workspace-relative path into the blob storage key
// by prepending the bucket prefix where the bucket opens at the host level.
func (w *Workspace) storageKey(path string) string {
	sk := strings.TrimPrefix(path, "/")
	if w.bucketPrefix != "" {
		if sk == "" {
			return w.bucketPrefix + "/"
		}
		return w.bucketPrefix + "/" + sk
	}
	return sk
}

// listPrefix returns the bucket listing prefix for a workspace folder
func (w *Workspace) listPrefix(folder string) string {
	prefix := strings.Trim(w.storageKey(folder), "/")
	if prefix != "" {
		prefix = prefix + "/"
	}
	return prefix
}

func spanName(op string) string {
	return schema.SchemaName + ".workspace." + op
}

// blobErr wraps a go-cloud blob error with the appropriate httpresponse error
func blobErr(err error, name string) error {
	if err == nil {
		return nil
	}
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return httpresponse.ErrNotFound.Withf("object %q not found", name)
	case gcerrors.PermissionDenied:
		return httpresponse.ErrForbidden.Withf("permission denied for %q", name)
	case gcerrors.InvalidArgument:
		return httpresponse.ErrBadRequest.Withf("invalid argument for %q: %v", name, err)
	case gcerrors.FailedPrecondition:
		return httpresponse.ErrConflict.Withf("precondition failed for %q: %v", name, err)
	default:
		return httpresponse.ErrInternalError.Withf("blob operation failed: %v", err)
	}
}
