package backend

import (
	"context"
	"io"
	"net/http"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	schema "github.com/mutablelogic/go-collect/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
	blob "gocloud.dev/blob"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Put commits one file into the workspace under folder, enforcing the plan's
// per-file ceiling and storage limit before any bytes are written. When the
// declared size is unknown, the storage limit is still enforced on the bytes
// actually written and a violating object is removed again.
func (w *Workspace) Put(ctx context.Context, folder string, file schema.File) (record *schema.UploadedFileRecord, err error) {
	// OTEL span
	child, endFunc := otel.StartSpan(w.tracer, ctx, spanName("Put"))
	defer func() { endFunc(err) }()
	ctx = child

	if file.Name == "" {
		return nil, httpresponse.ErrBadRequest.With("missing file name")
	}
	if file.Open == nil {
		return nil, httpresponse.ErrBadRequest.Withf("file %q has no payload", file.Name)
	}
	if w.plan.MaxFileSize > 0 && file.Size > w.plan.MaxFileSize {
		return nil, httpresponse.Err(http.StatusRequestEntityTooLarge).Withf("file %q exceeds the maximum file size", file.Name)
	}

	// Seed the usage counters so the quota check sees existing objects
	if err := w.seed(ctx); err != nil {
		return nil, err
	}

	path := types.JoinPath(folder, file.Name)
	key := w.storageKey(path)

	// When the object already exists its size is replaced, not added
	var replaced int64
	var replacing bool
	if attrs, err := w.bucket.Attributes(ctx, key); err == nil {
		replaced = attrs.Size
		replacing = true
	}

	w.mu.Lock()
	used := w.usedBytes - replaced
	w.mu.Unlock()
	if w.plan.LimitBytes > 0 && file.Size > 0 && used+file.Size > w.plan.LimitBytes {
		return nil, httpresponse.Err(http.StatusInsufficientStorage).With("not enough storage space remaining")
	}

	body, err := file.Open()
	if err != nil {
		return nil, httpresponse.ErrBadRequest.Withf("cannot open %q: %v", file.Name, err)
	}
	defer body.Close()

	ct := file.ContentType
	if ct == "" {
		ct = types.ContentTypeBinary
	}

	// Write the object, counting bytes actually stored
	var written int64
	if writer, err := w.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: ct}); err != nil {
		return nil, blobErr(err, file.Name)
	} else if written, err = io.Copy(writer, body); err != nil {
		writer.Close()
		w.bucket.Delete(ctx, key)
		return nil, blobErr(err, file.Name)
	} else if err := writer.Close(); err != nil {
		w.bucket.Delete(ctx, key)
		return nil, blobErr(err, file.Name)
	}

	// Size-unknown payloads are checked against the limit after the fact
	if w.plan.LimitBytes > 0 && used+written > w.plan.LimitBytes {
		w.bucket.Delete(ctx, key)
		return nil, httpresponse.Err(http.StatusInsufficientStorage).With("not enough storage space remaining")
	}

	if replacing {
		w.account(written-replaced, 0)
	} else {
		w.account(written, 1)
	}

	record = &schema.UploadedFileRecord{
		ID:          uuid.NewString(),
		Workspace:   w.Name(),
		Path:        types.NormalisePath(path),
		Name:        file.Name,
		Size:        written,
		ContentType: ct,
		ModTime:     time.Now().UTC().Truncate(time.Second),
	}
	if attrs, err := w.bucket.Attributes(ctx, key); err == nil {
		record.ModTime = attrs.ModTime
	}
	return record, nil
}
