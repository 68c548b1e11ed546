package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestEmbeddingClientOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "BAAI/bge-small-en-v1.5", req.Model)
		require.Equal(t, []string{"first", "second"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"model": "BAAI/bge-small-en-v1.5",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1, 0]},
				{"object": "embedding", "index": 0, "embedding": [1, 0, 0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	}))
	defer srv.Close()

	client, err := NewEmbeddingClient(srv.URL+"/v1/", "hf-token", "BAAI/bge-small-en-v1.5", 3)
	require.NoError(t, err)

	vectors, err := client.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, vectors)
}

func TestEmbeddingClientTruncatesOnRuneBoundary(t *testing.T) {
	// "é" is two bytes and straddles the cap
	long := strings.Repeat("a", maxChars-1) + strings.Repeat("é", 10)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 1)
		require.True(t, utf8.ValidString(req.Input[0]))
		require.Equal(t, strings.Repeat("a", maxChars-1), req.Input[0])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"model": "m",
			"data": [{"object": "embedding", "index": 0, "embedding": [1, 0, 0]}],
			"usage": {"prompt_tokens": 1, "total_tokens": 1}
		}`))
	}))
	defer srv.Close()

	client, err := NewEmbeddingClient(srv.URL+"/v1/", "hf-token", "m", 3)
	require.NoError(t, err)
	_, err = client.Embed(context.Background(), []string{long})
	require.NoError(t, err)
}

func TestTruncateUTF8(t *testing.T) {
	require.Equal(t, "abc", truncateUTF8("abc", 5))
	require.Equal(t, "a", truncateUTF8("aéb", 2))
	require.Equal(t, "aé", truncateUTF8("aéb", 3))
	require.Equal(t, "", truncateUTF8("日本", 2))
}

func TestEmbeddingClientChecksDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[1,2]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer srv.Close()

	client, err := NewEmbeddingClient(srv.URL+"/v1/", "", "m", 384)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"x"})
	require.ErrorContains(t, err, "expected 384")
}

func TestChatGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "HuggingFaceH4/zephyr-7b-beta", req.Model)
		require.Len(t, req.Messages, 1)
		require.Equal(t, "user", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "HuggingFaceH4/zephyr-7b-beta",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  I don't know \n"}}]
		}`))
	}))
	defer srv.Close()

	gen, err := NewChatGenerator(srv.URL+"/v1/", "hf-token", "HuggingFaceH4/zephyr-7b-beta", 256)
	require.NoError(t, err)

	answer, err := gen.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "I don't know", answer)
}

func TestClientsRequireModel(t *testing.T) {
	_, err := NewEmbeddingClient("", "", "", 0)
	require.Error(t, err)
	_, err = NewChatGenerator("", "", "", 0)
	require.Error(t, err)
}
