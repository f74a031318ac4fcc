package uploader_test

import (
	"testing"

	// Packages
	schema "github.com/mutablelogic/go-collect/schema"
	uploader "github.com/mutablelogic/go-collect/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	kb = int64(1 << 10)
	mb = int64(1 << 20)
	gb = int64(1 << 30)
)

func file(name string, size int64) schema.File {
	return schema.File{Name: name, Size: size}
}

func TestValidateAdmissible(t *testing.T) {
	quota := schema.QuotaSnapshot{UsedBytes: 1 * gb, LimitBytes: 10 * gb}
	plan := schema.PlanLimits{Key: "free", MaxFileSize: 2 * gb}

	result := uploader.Validate([]schema.File{
		file("a.txt", 100*mb),
		file("b.txt", 200*mb),
	}, quota, plan)

	assert.True(t, result.Valid)
	assert.Empty(t, result.InvalidFiles)
	assert.False(t, result.ExceedsLimit)
	assert.Equal(t, 300*mb, result.TotalSize)
}

func TestValidateQuotaBoundary(t *testing.T) {
	quota := schema.QuotaSnapshot{UsedBytes: 9_500_000_000, LimitBytes: 10_000_000_000}
	plan := schema.PlanLimits{Key: "free", MaxFileSize: 2 * gb}

	result := uploader.Validate([]schema.File{
		file("big.bin", 600_000_000),
	}, quota, plan)

	assert.False(t, result.Valid)
	assert.True(t, result.ExceedsLimit)
	assert.Empty(t, result.InvalidFiles)
	assert.Contains(t, result.Reason, "storage")
}

func TestValidatePlanCeiling(t *testing.T) {
	quota := schema.QuotaSnapshot{UsedBytes: 0, LimitBytes: 100 * gb}
	plan := schema.PlanLimits{Key: "free", MaxFileSize: 2 * gb}

	result := uploader.Validate([]schema.File{
		file("huge.iso", 5*gb/2),
		file("ok.txt", 1*kb),
	}, quota, plan)

	assert.False(t, result.Valid)
	require.Len(t, result.InvalidFiles, 1)
	assert.Equal(t, "huge.iso", result.InvalidFiles[0].File.Name)
	assert.Contains(t, result.InvalidFiles[0].Reason, "maximum file size")

	// Resubmitting without the oversized file proceeds
	result = uploader.Validate([]schema.File{
		file("ok.txt", 1*kb),
	}, quota, plan)
	assert.True(t, result.Valid)
}

func TestValidateAllOversized(t *testing.T) {
	// The quota check runs over the admissible subset only: both files
	// fail the per-file ceiling, so the reason is about file size, not
	// storage space.
	quota := schema.QuotaSnapshot{UsedBytes: 10 * gb, LimitBytes: 10 * gb}
	plan := schema.PlanLimits{Key: "free", MaxFileSize: 1 * mb}

	result := uploader.Validate([]schema.File{
		file("a.bin", 10*mb),
		file("b.bin", 20*mb),
	}, quota, plan)

	assert.False(t, result.Valid)
	assert.Len(t, result.InvalidFiles, 2)
	assert.False(t, result.ExceedsLimit)
	assert.Contains(t, result.Reason, "file size")
	assert.NotContains(t, result.Reason, "storage")
}

func TestValidateFilesLimit(t *testing.T) {
	quota := schema.QuotaSnapshot{LimitBytes: 10 * gb}
	plan := schema.PlanLimits{Key: "free", MaxFileSize: 2 * gb, MaxFilesPerUpload: 2}

	result := uploader.Validate([]schema.File{
		file("a", 1), file("b", 1), file("c", 1),
	}, quota, plan)

	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "too many files")
}

func TestValidateUnlimited(t *testing.T) {
	// Zero ceilings disable the corresponding checks
	result := uploader.Validate([]schema.File{
		file("a.bin", 100*gb),
	}, schema.QuotaSnapshot{}, schema.PlanLimits{})
	assert.True(t, result.Valid)
}
