package noveltranslator

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

	"github.com/Emasoft/enchant-cli-sub000/internal/chunker"
	"github.com/Emasoft/enchant-cli-sub000/internal/chunktranslator"
	"github.com/Emasoft/enchant-cli-sub000/internal/costtracker"
	"github.com/Emasoft/enchant-cli-sub000/internal/llmclient"
)

func TestSanitizeDirName(t *testing.T) {
	out := SanitizeDirName(`Strange: Tales?`, "J. Doe")
	assert.NotContains(t, out, ":")
	assert.NotContains(t, out, "?")
	assert.Contains(t, out, "Strange")
}

func TestChunkFileName(t *testing.T) {
	assert.Equal(t, "Title by Author - Chunk_000003.txt", ChunkFileName("Title", "Author", 3))
}

func TestExistingChunkNumbers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Title by Author - Chunk_000001.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Title by Author - Chunk_000002.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))

	done, err := ExistingChunkNumbers(dir, "Title", "Author")
	require.NoError(t, err)
	assert.True(t, done[1])
	assert.True(t, done[2])
	assert.False(t, done[3])
}

func TestExistingChunkNumbers_MissingDir(t *testing.T) {
	done, err := ExistingChunkNumbers(filepath.Join(t.TempDir(), "nope"), "Title", "Author")
	require.NoError(t, err)
	assert.Empty(t, done)
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp)
	}))
}

func TestTranslate_EndToEnd(t *testing.T) {
	srv := chatServer(t, "This is a sufficiently long English translation of the chunk content for testing purposes here.")
	defer srv.Close()

	client := llmclient.New(llmclient.Config{APIURL: srv.URL})
	chunkTr := chunktranslator.New(client, chunktranslator.LocalPrompts, chunktranslator.SinglePass, costtracker.New())

	cfg := Config{MaxChars: 100, SplitMode: SplitParagraphs, ParagraphMethod: chunker.MethodParagraph}
	tr := New(cfg, chunkTr, costtracker.New(), nil)

	outDir := t.TempDir()
	text := strings.Repeat("段", 20) + "\n\n" + strings.Repeat("落", 20)

	err := tr.Translate(context.Background(), text, "Title", "Author", outDir)
	require.NoError(t, err)

	finalPath := filepath.Join(outDir, "translated_Title by Author.txt")
	content, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "sufficiently long English translation")
}

func TestTranslate_ResumesFromExistingChunks(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Freshly translated content for this single remaining chunk."}},
			},
		})
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp)
	}))
	defer srv.Close()

	client := llmclient.New(llmclient.Config{APIURL: srv.URL})
	chunkTr := chunktranslator.New(client, chunktranslator.LocalPrompts, chunktranslator.SinglePass, costtracker.New())

	cfg := Config{MaxChars: 10, SplitMode: SplitParagraphs, ParagraphMethod: chunker.MethodParagraph}
	tr := New(cfg, chunkTr, costtracker.New(), nil)

	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "Title by Author - Chunk_000001.txt"), []byte("already done"), 0o644))

	text := strings.Repeat("a", 8) + "\n\n" + strings.Repeat("b", 8)
	err := tr.Translate(context.Background(), text, "Title", "Author", outDir)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "should only translate the missing chunk")
}
