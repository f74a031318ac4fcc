package backend_test

import (
	"context"
	"io"
	"strings"
	"testing"

	// Packages
	backend "github.com/mutablelogic/go-collect/backend"
	schema "github.com/mutablelogic/go-collect/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracetest "go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func textFile(name, content string) schema.File {
	return schema.File{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: "text/plain",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func TestWorkspacePut(t *testing.T) {
	ctx := context.Background()
	w, err := backend.New(ctx, "mem://ws")
	require.NoError(t, err)
	defer w.Close()

	record, err := w.Put(ctx, "docs", textFile("a.txt", "hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "ws", record.Workspace)
	assert.Equal(t, "/docs/a.txt", record.Path)
	assert.Equal(t, "a.txt", record.Name)
	assert.Equal(t, int64(5), record.Size)
	assert.Equal(t, "text/plain", record.ContentType)

	quota, err := w.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), quota.UsedBytes)
	assert.Equal(t, int64(1), quota.FileCount)
}

func TestWorkspaceReplace(t *testing.T) {
	ctx := context.Background()
	w, err := backend.New(ctx, "mem://ws")
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Put(ctx, "", textFile("a.txt", "first"))
	require.NoError(t, err)
	_, err = w.Put(ctx, "", textFile("a.txt", "second version"))
	require.NoError(t, err)

	quota, err := w.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len("second version")), quota.UsedBytes)
	assert.Equal(t, int64(1), quota.FileCount)
}

func TestWorkspacePutCeiling(t *testing.T) {
	ctx := context.Background()
	w, err := backend.New(ctx, "mem://ws",
		backend.WithPlan(schema.PlanLimits{Key: "free", MaxFileSize: 4}),
	)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Put(ctx, "", textFile("big.txt", "too big for the plan"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum file size")

	// An admissible file still goes through
	_, err = w.Put(ctx, "", textFile("ok.txt", "tiny"))
	assert.NoError(t, err)
}

func TestWorkspacePutQuota(t *testing.T) {
	ctx := context.Background()
	w, err := backend.New(ctx, "mem://ws",
		backend.WithPlan(schema.PlanLimits{Key: "free", LimitBytes: 10}),
	)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Put(ctx, "", textFile("a.txt", "12345678"))
	require.NoError(t, err)

	_, err = w.Put(ctx, "", textFile("b.txt", "xyz"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enough storage space remaining")

	// Usage is unchanged by the rejected upload
	quota, err := w.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), quota.UsedBytes)
	assert.Equal(t, int64(1), quota.FileCount)
}

func TestWorkspaceDelete(t *testing.T) {
	ctx := context.Background()
	w, err := backend.New(ctx, "mem://ws")
	require.NoError(t, err)
	defer w.Close()

	record, err := w.Put(ctx, "docs", textFile("a.txt", "hello"))
	require.NoError(t, err)

	deleted, err := w.Delete(ctx, record.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted.Size)
	assert.Equal(t, "a.txt", deleted.Name)

	quota, err := w.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), quota.UsedBytes)
	assert.Equal(t, int64(0), quota.FileCount)

	// Deleting again reports not found
	_, err = w.Delete(ctx, record.Path)
	assert.Error(t, err)
}

func TestWorkspaceList(t *testing.T) {
	ctx := context.Background()
	w, err := backend.New(ctx, "mem://ws")
	require.NoError(t, err)
	defer w.Close()

	for _, f := range []struct{ folder, name string }{
		{"", "root.txt"},
		{"docs", "a.txt"},
		{"docs/sub", "b.txt"},
	} {
		_, err := w.Put(ctx, f.folder, textFile(f.name, "x"))
		require.NoError(t, err)
	}

	all, err := w.List(ctx, "", true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	docs, err := w.List(ctx, "docs", false)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "/docs/a.txt", docs[0].Path)

	nested, err := w.List(ctx, "docs", true)
	require.NoError(t, err)
	assert.Len(t, nested, 2)
}

func TestWorkspaceSeed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	w1, err := backend.New(ctx, "file://ws"+dir, backend.WithCreateDir())
	require.NoError(t, err)
	_, err = w1.Put(ctx, "docs", textFile("a.txt", "hello"))
	require.NoError(t, err)
	require.NoError(t, w1.Close())

	// A fresh workspace over the same directory seeds from a listing
	w2, err := backend.New(ctx, "file://ws"+dir)
	require.NoError(t, err)
	defer w2.Close()

	quota, err := w2.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), quota.UsedBytes)
	assert.Equal(t, int64(1), quota.FileCount)
}

func TestWorkspaceStorageInfo(t *testing.T) {
	ctx := context.Background()
	w, err := backend.New(ctx, "mem://ws",
		backend.WithPlan(schema.PlanLimits{Key: "free", LimitBytes: 100}),
		backend.WithWarnThreshold(0.9),
	)
	require.NoError(t, err)
	defer w.Close()

	info := w.StorageInfo(&schema.QuotaSnapshot{UsedBytes: 50, LimitBytes: 100})
	assert.Equal(t, float64(50), info.UsagePercentage)
	assert.Equal(t, int64(50), info.RemainingBytes)
	assert.False(t, info.ShouldShowWarning)

	info = w.StorageInfo(&schema.QuotaSnapshot{UsedBytes: 95, LimitBytes: 100})
	assert.True(t, info.ShouldShowWarning)
}

func TestWorkspaceName(t *testing.T) {
	ctx := context.Background()
	_, err := backend.New(ctx, "mem://not a name")
	assert.Error(t, err)

	w, err := backend.New(ctx, "mem://ws")
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, "ws", w.Name())
}

// Workspace operations record spans on the configured tracer.
func TestWorkspaceTracing(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer(t.Name())
	w, err := backend.New(ctx, "mem://ws", backend.WithTracer(tracer))
	require.NoError(t, err)
	defer w.Close()

	record, err := w.Put(ctx, "docs", textFile("a.txt", "hello"))
	require.NoError(t, err)
	_, err = w.List(ctx, "", true)
	require.NoError(t, err)
	_, err = w.Quota(ctx)
	require.NoError(t, err)
	_, err = w.Delete(ctx, record.Path)
	require.NoError(t, err)

	names := make([]string, 0, 4)
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "collect.workspace.Put")
	assert.Contains(t, names, "collect.workspace.List")
	assert.Contains(t, names, "collect.workspace.Quota")
	assert.Contains(t, names, "collect.workspace.Delete")
}
