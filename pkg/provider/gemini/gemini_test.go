package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pagelens/pkg/provider"
	"pagelens/pkg/settings"
	"pagelens/pkg/store"
)

type fixedCredential string

func (c fixedCredential) APIKey(context.Context) (string, error) {
	if c == "" {
		return "", settings.ErrCredentialMissing
	}
	return string(c), nil
}

type unsetBound struct{}

func (unsetBound) OutputTokenBound(context.Context) (int, bool, error) {
	return 0, false, nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, creds provider.CredentialSource) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewFlash(creds, unsetBound{}, Options{BaseURL: server.URL})
}

func TestGenerateSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`))
	}, fixedCredential("secret-key"))

	result := client.Generate(context.Background(), "Summarize this page")
	if result.Kind != provider.KindSuccess {
		t.Fatalf("kind = %v, want KindSuccess (%+v)", result.Kind, result)
	}
	if result.Text != "hello" {
		t.Fatalf("text = %q, want %q", result.Text, "hello")
	}

	if !strings.HasSuffix(gotPath, "/models/gemini-2.5-flash:generateContent") {
		t.Fatalf("path = %q, want generateContent endpoint", gotPath)
	}
	if gotKey != "secret-key" {
		t.Fatalf("key query param = %q, want the credential", gotKey)
	}

	contents, ok := gotBody["contents"].([]any)
	if !ok || len(contents) != 1 {
		t.Fatalf("request contents = %v, want one entry", gotBody["contents"])
	}
	genCfg, ok := gotBody["generationConfig"].(map[string]any)
	if !ok {
		t.Fatalf("request missing generationConfig: %v", gotBody)
	}
	if genCfg["maxOutputTokens"] != float64(DefaultOutputTokenBound) {
		t.Fatalf("maxOutputTokens = %v, want %d", genCfg["maxOutputTokens"], DefaultOutputTokenBound)
	}
}

func TestGenerateUsesPersistedBound(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := settings.NewSettings(st)
	if err := cfg.SetInt(context.Background(), settings.KeyMaxOutputTokens, 500); err != nil {
		t.Fatalf("SetInt error: %v", err)
	}

	var gotBound float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotBound = body["generationConfig"].(map[string]any)["maxOutputTokens"].(float64)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	t.Cleanup(server.Close)

	client := NewFlash(fixedCredential("k"), cfg, Options{BaseURL: server.URL})
	if result := client.Generate(context.Background(), "x"); result.Kind != provider.KindSuccess {
		t.Fatalf("kind = %v, want KindSuccess", result.Kind)
	}
	if gotBound != 500 {
		t.Fatalf("maxOutputTokens = %v, want 500", gotBound)
	}
}

func TestGenerateContentBlocked(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{
			"finishReason":"SAFETY",
			"safetyRatings":[
				{"category":"HARM_CATEGORY_DANGEROUS_CONTENT","blocked":true},
				{"category":"HARM_CATEGORY_HARASSMENT","blocked":false},
				{"category":"HARM_CATEGORY_HATE_SPEECH","blocked":true}
			]}]}`))
	}, fixedCredential("k"))

	result := client.Generate(context.Background(), "x")
	if result.Kind != provider.KindBlocked {
		t.Fatalf("kind = %v, want KindBlocked", result.Kind)
	}
	if result.Reason != "SAFETY" {
		t.Fatalf("reason = %q, want SAFETY", result.Reason)
	}
	want := []string{"HARM_CATEGORY_DANGEROUS_CONTENT", "HARM_CATEGORY_HATE_SPEECH"}
	if len(result.Categories) != len(want) {
		t.Fatalf("categories = %v, want %v", result.Categories, want)
	}
	for i := range want {
		if result.Categories[i] != want[i] {
			t.Fatalf("categories = %v, want %v (order-preserving)", result.Categories, want)
		}
	}
}

func TestGenerateMalformedResponse(t *testing.T) {
	for name, body := range map[string]string{
		"no text no reason": `{"candidates":[{"content":{"parts":[]}}]}`,
		"empty candidates":  `{"candidates":[]}`,
		"not json":          `plain text body`,
	} {
		t.Run(name, func(t *testing.T) {
			body := body
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}, fixedCredential("k"))

			result := client.Generate(context.Background(), "x")
			if result.Kind != provider.KindMalformed {
				t.Fatalf("kind = %v, want KindMalformed", result.Kind)
			}
			if string(result.Raw) != body {
				t.Fatalf("raw = %s, want the full body", result.Raw)
			}
		})
	}
}

func TestGenerateOnlyFirstCandidateClassified(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[
			{"content":{"parts":[{"text":"first"}]}},
			{"content":{"parts":[{"text":"second"}]}}
		]}`))
	}, fixedCredential("k"))

	result := client.Generate(context.Background(), "x")
	if result.Kind != provider.KindSuccess || result.Text != "first" {
		t.Fatalf("result = %+v, want success with first candidate's text", result)
	}
}

func TestGenerateTransportFailureStructuredDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}, fixedCredential("k"))

	result := client.Generate(context.Background(), "x")
	if result.Kind != provider.KindTransportFailure {
		t.Fatalf("kind = %v, want KindTransportFailure", result.Kind)
	}
	if result.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", result.Status)
	}
	if result.Detail != "API key not valid" {
		t.Fatalf("detail = %q, want structured message", result.Detail)
	}
}

func TestGenerateTransportFailureGenericDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`oops`))
	}, fixedCredential("k"))

	result := client.Generate(context.Background(), "x")
	if result.Kind != provider.KindTransportFailure {
		t.Fatalf("kind = %v, want KindTransportFailure", result.Kind)
	}
	if result.Detail != "HTTP 500" {
		t.Fatalf("detail = %q, want %q", result.Detail, "HTTP 500")
	}
}

func TestGenerateCredentialMissing(t *testing.T) {
	requested := false
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		requested = true
	}, fixedCredential(""))

	result := client.Generate(context.Background(), "x")
	if result.Kind != provider.KindTransportFailure {
		t.Fatalf("kind = %v, want KindTransportFailure", result.Kind)
	}
	if !strings.Contains(result.Detail, "credential missing") {
		t.Fatalf("detail = %q, want credential-missing tag", result.Detail)
	}
	if !strings.Contains(result.Detail, "gemini-2.5-flash_v1") {
		t.Fatalf("detail = %q, want backend identifier for diagnostics", result.Detail)
	}
	if requested {
		t.Fatal("no network call should happen without a credential")
	}
}
