package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "assets.db"), filepath.Join(dir, "input2uuid.txt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleImage() *models.ImageAsset {
	return &models.ImageAsset{
		Common: models.Common{
			ID:        uuid.New(),
			Name:      "tex/brick_col.png",
			Tags:      []string{},
			UpdatedAt: time.Now().UTC(),
		},
		InputRelPath: "tex/brick_col.png",
		Format:       models.FormatSrgbDxt1,
	}
}

func TestInsertGetDelete(t *testing.T) {
	c := newTestCatalog(t)
	a := sampleImage()

	c.Insert(a)
	got, ok := c.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, a.ID, got.Identifier())

	c.Delete(a.ID)
	_, ok = c.Get(a.ID)
	assert.False(t, ok)
}

func TestInsertCompilationAndLastCompilation(t *testing.T) {
	c := newTestCatalog(t)
	a := sampleImage()
	c.Insert(a)

	c.InsertCompilation(models.Compilation{
		Identifier: a.ID,
		Timestamp:  time.Now().Add(-time.Minute),
		Duration:   2 * time.Second,
		Command:    "img2bf --input a --output b",
	})
	c.InsertCompilation(models.Compilation{
		Identifier: a.ID,
		Timestamp:  time.Now(),
		Duration:   3 * time.Second,
		Command:    "img2bf --input a --output b",
	})

	last, ok := c.LastCompilation(a.ID)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, last.Duration)

	eta, ok := c.CompilationETA(a.ID)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, eta)

	assert.Len(t, c.GetCompilations(a.ID), 2)
}

func TestFindByInputPath(t *testing.T) {
	c := newTestCatalog(t)
	a := sampleImage()
	c.Insert(a)

	found, ok := c.FindByInputPath("tex/brick_col.png")
	require.True(t, ok)
	assert.Equal(t, a.ID, found.Identifier())

	_, ok = c.FindByInputPath("tex/missing.png")
	assert.False(t, ok)
}

func TestFlushThenReopenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "assets.db")
	sideFile := filepath.Join(dir, "input2uuid.txt")

	c, err := Open(dbFile, sideFile)
	require.NoError(t, err)

	a := sampleImage()
	c.Insert(a)
	c.InsertCompilation(models.Compilation{
		Identifier: a.ID,
		Timestamp:  time.Now(),
		Duration:   time.Second,
		Command:    "img2bf",
	})

	require.NoError(t, c.Close())

	c2, err := Open(dbFile, sideFile)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c2.Close() })

	got, ok := c2.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, a.InputRelPath, got.(*models.ImageAsset).InputRelPath)
	assert.Len(t, c2.GetCompilations(a.ID), 1)
}

func TestMissingFileIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "does-not-exist.db"), filepath.Join(dir, "input2uuid.txt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Empty(t, c.GetAll())
}
