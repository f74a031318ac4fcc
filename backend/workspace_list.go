package backend

import (
	"context"
	"io"
	"strings"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	schema "github.com/mutablelogic/go-collect/schema"
	blob "gocloud.dev/blob"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// List returns the files stored under folder, recursing into nested folders
// when recursive is true. Pass an empty folder to list the whole workspace.
func (w *Workspace) List(ctx context.Context, folder string, recursive bool) (records []schema.UploadedFileRecord, err error) {
	// OTEL span
	child, endFunc := otel.StartSpan(w.tracer, ctx, spanName("List"))
	defer func() { endFunc(err) }()
	ctx = child

	prefix := w.listPrefix(folder)

	var delim string
	if !recursive {
		delim = "/"
	}
	iter := w.bucket.List(&blob.ListOptions{
		Prefix:    prefix,
		Delimiter: delim,
	})

	var result []schema.UploadedFileRecord
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, blobErr(err, w.Name())
		}

		// Skip folder pseudo-entries
		if obj.Key == prefix || strings.HasSuffix(obj.Key, "/") {
			continue
		}

		key := obj.Key
		if w.bucketPrefix != "" {
			key = strings.TrimPrefix(key, w.bucketPrefix+"/")
		}
		path := "/" + key
		result = append(result, schema.UploadedFileRecord{
			Workspace: w.Name(),
			Path:      path,
			Name:      baseName(obj.Key),
			Size:      obj.Size,
			ModTime:   obj.ModTime,
		})
	}

	return result, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// baseName returns the final path element
func baseName(path string) string {
	if i := strings.LastIndexByte(strings.TrimSuffix(path, "/"), '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
