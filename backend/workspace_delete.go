package backend

import (
	"context"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	schema "github.com/mutablelogic/go-collect/schema"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Delete removes one file from the workspace and releases its bytes from
// the usage counters. The path is workspace-relative, as returned in an
// UploadedFileRecord.
func (w *Workspace) Delete(ctx context.Context, path string) (record *schema.UploadedFileRecord, err error) {
	// OTEL span
	child, endFunc := otel.StartSpan(w.tracer, ctx, spanName("Delete"))
	defer func() { endFunc(err) }()
	ctx = child

	if err := w.seed(ctx); err != nil {
		return nil, err
	}

	key := w.storageKey(path)
	attrs, err := w.bucket.Attributes(ctx, key)
	if err != nil {
		return nil, blobErr(err, path)
	}
	if err := w.bucket.Delete(ctx, key); err != nil {
		return nil, blobErr(err, path)
	}
	w.account(-attrs.Size, -1)

	return &schema.UploadedFileRecord{
		Workspace:   w.Name(),
		Path:        path,
		Name:        baseName(path),
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		ModTime:     attrs.ModTime,
	}, nil
}
