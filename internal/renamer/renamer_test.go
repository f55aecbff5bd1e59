package renamer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emasoft/enchant-cli-sub000/internal/llmclient"
)

func TestIsCanonicalName(t *testing.T) {
	assert.True(t, IsCanonicalName("Title Eng by Author Eng (Author Roman) - Title Orig by Author Orig.txt"))
	assert.False(t, IsCanonicalName("random_novel.txt"))
}

func TestBuildCanonicalName(t *testing.T) {
	m := Metadata{
		TitleEnglish: "The Path", AuthorEnglish: "Jane Doe", AuthorRomanized: "Jian Duo",
		TitleOriginal: "原名", AuthorOriginal: "原作者",
	}
	name := BuildCanonicalName(m)
	assert.True(t, IsCanonicalName(name))
}

func TestUniqueTargetPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	path, err := UniqueTargetPath(dir, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a (1).txt"), path)
}

func metaServer(t *testing.T, meta Metadata) *httptest.Server {
	t.Helper()
	body, _ := json.Marshal(meta)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": string(body)}},
			},
		})
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp)
	}))
}

func TestExtractMetadata(t *testing.T) {
	srv := metaServer(t, Metadata{
		TitleOriginal: "道", TitleEnglish: "The Dao", AuthorOriginal: "作者",
		AuthorRomanized: "Zuozhe", AuthorEnglish: "The Author",
	})
	defer srv.Close()

	client := llmclient.New(llmclient.Config{APIURL: srv.URL})
	r := New(client, Config{})

	dir := t.TempDir()
	path := filepath.Join(dir, "source.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("中文内容", 500)), 0o644))

	meta, err := r.ExtractMetadata(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "The Dao", meta.TitleEnglish)
	assert.Equal(t, "The Author", meta.AuthorEnglish)
}

func TestRenameFile_SkipsSmallFile(t *testing.T) {
	srv := metaServer(t, Metadata{})
	defer srv.Close()
	client := llmclient.New(llmclient.Config{APIURL: srv.URL})
	r := New(client, Config{MinFileSizeBytes: 1024})

	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.txt")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o644))

	result := r.RenameFile(context.Background(), path)
	assert.True(t, result.Skipped)
}

func TestRenameFile_SkipsAlreadyCanonical(t *testing.T) {
	client := llmclient.New(llmclient.Config{APIURL: "http://unused"})
	r := New(client, Config{})

	dir := t.TempDir()
	name := "Eng Title by Eng Author (Roman Author) - Orig Title by Orig Author.txt"
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 200000)), 0o644))

	result := r.RenameFile(context.Background(), path)
	assert.True(t, result.Skipped)
	assert.Equal(t, path, result.TargetPath)
}

func TestRenameFile_DryRun(t *testing.T) {
	srv := metaServer(t, Metadata{
		TitleOriginal: "道", TitleEnglish: "The Dao", AuthorOriginal: "作者",
		AuthorRomanized: "Zuozhe", AuthorEnglish: "The Author",
	})
	defer srv.Close()
	client := llmclient.New(llmclient.Config{APIURL: srv.URL})
	r := New(client, Config{MinFileSizeBytes: 10, DryRun: true})

	dir := t.TempDir()
	path := filepath.Join(dir, "source.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("中文内容", 500)), 0o644))

	result := r.RenameFile(context.Background(), path)
	require.NoError(t, result.Err)
	assert.False(t, result.Skipped)
	// File untouched on disk.
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}
