package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestTranslateMessages_Success(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": strings.Repeat("The quick brown fox jumps over the lazy dog, quietly. ", 6)}},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30, "cost": 0.001},
	})
	srv := newTestServer(t, http.StatusOK, string(resp))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL, Remote: true})
	result, err := c.TranslateMessages(context.Background(), "system", "user", false)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "quick brown fox")
	assert.Equal(t, int64(30), result.Usage.TotalTokens)
}

func TestTranslateMessages_Unauthorized_IsFatal(t *testing.T) {
	srv := newTestServer(t, http.StatusUnauthorized, `{"error":{"message":"invalid key"}}`)
	defer srv.Close()

	c := New(Config{APIURL: srv.URL})
	_, err := c.TranslateMessages(context.Background(), "system", "user", false)
	require.Error(t, err)
	var fatal *ErrFatal
	assert.ErrorAs(t, err, &fatal)
}

func TestTranslateMessages_ServerError_IsRetriable(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, `oops`)
	defer srv.Close()

	c := New(Config{APIURL: srv.URL})
	_, err := c.TranslateMessages(context.Background(), "system", "user", false)
	require.Error(t, err)
	var retriable *ErrRetriable
	assert.ErrorAs(t, err, &retriable)
}

func TestTranslateMessages_NonLatinContent_IsRetriable(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": "这完全是中文内容，没有任何拉丁字符存在于这里。"}},
		},
	})
	srv := newTestServer(t, http.StatusOK, string(resp))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL})
	_, err := c.TranslateMessages(context.Background(), "system", "user", false)
	require.Error(t, err)
	var retriable *ErrRetriable
	assert.ErrorAs(t, err, &retriable)
}

func TestTranslateMessages_TooShort_NotLastChunk_IsRetriable(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": "Too short."}},
		},
	})
	srv := newTestServer(t, http.StatusOK, string(resp))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL})
	_, err := c.TranslateMessages(context.Background(), "system", "user", false)
	require.Error(t, err)

	// Last chunk: short output is accepted.
	srv2 := newTestServer(t, http.StatusOK, string(resp))
	defer srv2.Close()
	c2 := New(Config{APIURL: srv2.URL})
	result, err := c2.TranslateMessages(context.Background(), "system", "user", true)
	require.NoError(t, err)
	assert.Equal(t, "Too short.", result.Text)
}
