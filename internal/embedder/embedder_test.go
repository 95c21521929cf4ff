package embedder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("want path /api/embed, got %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("want model nomic-embed-text, got %s", req.Model)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "ednevnik-kb/") {
			t.Errorf("want ednevnik-kb user agent, got %q", ua)
		}
		out := ollamaEmbedResponse{}
		for i := range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{float32(i), 0.5})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text"})
	got, err := emb.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 3 || got[2][0] != 2 {
		t.Errorf("want 3 ordered vectors, got %v", got)
	}
}

func TestOllamaEmbedder_ErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model \"nomic-embed-text\" not found"}`)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	_, err := emb.Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("want error for 404")
	}
	if want := `ollama embedder: model "nomic-embed-text" not found`; err.Error() != want {
		t.Errorf("want %q, got %q", want, err.Error())
	}
}

func TestOllamaEmbedder_EmptyInputSkipsRequest(t *testing.T) {
	t.Parallel()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: "http://127.0.0.1:1", Model: "m"})
	got, err := emb.Embed(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("want empty result and no error, got %v, %v", got, err)
	}
}

func TestOpenAIEmbedder_OrdersByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("want bearer auth, got %q", got)
		}
		var req openai.EmbeddingRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		inputs, _ := req.Input.([]any)
		data := make([]openai.Embedding, len(inputs))
		for i := range inputs {
			// reversed
			j := len(inputs) - 1 - i
			data[i] = openai.Embedding{Index: j, Embedding: []float32{float32(j)}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.EmbeddingResponse{Data: data, Model: openai.SmallEmbedding3})
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: defaultOpenAIModel})
	got, err := emb.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i, v := range got {
		if v[0] != float32(i) {
			t.Errorf("vector %d: want %d, got %v", i, i, v[0])
		}
	}
}

func TestNewFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    string
		wantErr bool
	}{
		{"default ollama", map[string]string{}, "*embedder.OllamaEmbedder", false},
		{"openai", map[string]string{"EMBEDDING_PROVIDER": "openai", "OPENAI_API_KEY": "sk"}, "*embedder.OpenAIEmbedder", false},
		{"openai missing key", map[string]string{"EMBEDDING_PROVIDER": "openai"}, "", true},
		{"azure missing endpoint", map[string]string{"EMBEDDING_PROVIDER": "azure", "AZURE_OPENAI_API_KEY": "k"}, "", true},
		{"azure", map[string]string{"EMBEDDING_PROVIDER": "azure", "EMBEDDING_API_KEY": "k", "AZURE_OPENAI_ENDPOINT": "https://x.openai.azure.com"}, "*embedder.OpenAIEmbedder", false},
		{"unknown", map[string]string{"EMBEDDING_PROVIDER": "bedrock"}, "", true},
	}
	keys := []string{"EMBEDDING_PROVIDER", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "EMBEDDING_API_KEY", "EMBEDDING_ENDPOINT"}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range keys {
				t.Setenv(k, tc.env[k])
			}
			emb, err := NewFromEnv()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("want error, got %T", emb)
				}
				if vErr := Validate(slog.New(slog.DiscardHandler)); vErr == nil {
					t.Error("want Validate to reject the same configuration")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFromEnv: %v", err)
			}
			if got := typeName(emb); got != tc.want {
				t.Errorf("want %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDefaultDimensions(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	if got := DefaultDimensions("ollama"); got != defaultOllamaDimensions {
		t.Errorf("ollama: want %d, got %d", defaultOllamaDimensions, got)
	}
	if got := DefaultDimensions("azure"); got != defaultOpenAIDimensions {
		t.Errorf("azure: want %d, got %d", defaultOpenAIDimensions, got)
	}
	t.Setenv("EMBEDDING_DIMENSIONS", "256")
	if got := DefaultDimensions("ollama"); got != 256 {
		t.Errorf("override: want 256, got %d", got)
	}
}

func TestModel(t *testing.T) {
	t.Setenv("EMBEDDING_MODEL", "")
	if got := Model("ollama"); got != defaultOllamaModel {
		t.Errorf("ollama: want %s, got %s", defaultOllamaModel, got)
	}
	if got := Model("openai"); got != defaultOpenAIModel {
		t.Errorf("openai: want %s, got %s", defaultOpenAIModel, got)
	}
	t.Setenv("EMBEDDING_MODEL", "mxbai-embed-large")
	if got := Model("ollama"); got != "mxbai-embed-large" {
		t.Errorf("override: want mxbai-embed-large, got %s", got)
	}
}

func TestOllamaHost(t *testing.T) {
	t.Setenv("EMBEDDING_ENDPOINT", "")
	t.Setenv("OLLAMA_HOST", "")
	if got := OllamaHost(); got != defaultOllamaHost {
		t.Errorf("default: want %s, got %s", defaultOllamaHost, got)
	}
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")
	if got := OllamaHost(); got != "http://gpu-box:11434" {
		t.Errorf("OLLAMA_HOST: got %s", got)
	}
	t.Setenv("EMBEDDING_ENDPOINT", "http://embed:11434")
	if got := OllamaHost(); got != "http://embed:11434" {
		t.Errorf("EMBEDDING_ENDPOINT must win, got %s", got)
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()
	for model, want := range map[string]bool{
		"nomic-embed-text":       false,
		"text-embedding-3-small": false,
		"llama3.1:8b":            true,
		"gpt-4o":                 true,
	} {
		if got := looksLikeChatModel(model); got != want {
			t.Errorf("%s: want %v, got %v", model, want, got)
		}
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *OllamaEmbedder:
		return "*embedder.OllamaEmbedder"
	case *OpenAIEmbedder:
		return "*embedder.OpenAIEmbedder"
	}
	return "unknown"
}
