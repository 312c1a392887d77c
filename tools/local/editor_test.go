package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditorCreateAndView(t *testing.T) {
	dir := t.TempDir()
	e := NewEditor(dir)
	ctx := context.Background()

	res := e.Create(ctx, "pkg/a.txt", "one\ntwo\nthree\n")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Created pkg/a.txt (3 lines)", res.Output)

	res = e.View(ctx, "pkg/a.txt", 0, 0)
	require.True(t, res.Success)
	assert.Equal(t, "Contents of pkg/a.txt:\n1 | one\n2 | two\n3 | three", res.Output)

	res = e.View(ctx, "pkg/a.txt", 2, 3)
	assert.Equal(t, "Lines 2-3 of pkg/a.txt:\n2 | two\n3 | three", res.Output)

	res = e.View(ctx, "pkg/a.txt", 5, 0)
	assert.False(t, res.Success)
}

func TestEditorViewDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), nil, 0o644))

	res := NewEditor(dir).View(context.Background(), ".", 0, 0)
	require.True(t, res.Success)
	assert.Equal(t, "Directory contents of .:\na.go\nsub/", res.Output)
}

func TestEditorViewMissing(t *testing.T) {
	res := NewEditor(t.TempDir()).View(context.Background(), "nope.txt", 0, 0)
	assert.False(t, res.Success)
	assert.Equal(t, "File or directory not found: nope.txt", res.Error)
}

func TestEditorReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("x := 1\ny := 1\n"), 0o600))
	e := NewEditor(dir)
	ctx := context.Background()

	res := e.Replace(ctx, "a.go", "1", "2", false)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "found 2 times")

	res = e.Replace(ctx, "a.go", "x := 1", "x := 5", false)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Replaced 1 occurrence(s) in a.go", res.Output)

	res = e.Replace(ctx, "a.go", "missing", "z", false)
	assert.False(t, res.Success)
	assert.Equal(t, "String not found in a.go", res.Error)

	res = e.Replace(ctx, "a.go", ":=", "=", true)
	require.True(t, res.Success)
	assert.Equal(t, "Replaced 2 occurrence(s) in a.go", res.Output)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x = 5\ny = 1\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEditorFollowsWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	e := NewEditor(dir)
	e.SetWorkingDirectory(filepath.Join(dir, "nested"))

	res := e.Create(context.Background(), "b.txt", "hi")
	require.True(t, res.Success)
	_, err := os.Stat(filepath.Join(dir, "nested", "b.txt"))
	assert.NoError(t, err)
}
