package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/config"
)

func TestClientTranslate(t *testing.T) {
	var got request
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"title":"  Hello ","body":"Tea & cake\n"}`))
	}))
	defer srv.Close()

	client, err := NewClient(config.TranslationConfig{Endpoint: srv.URL, AuthToken: "tok"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	out, err := client.Translate(context.Background(), domain.LocalizedText{Title: "こんにちは", Body: "お茶"}, domain.LangEnglish)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got.Title != "こんにちは" || got.Body != "お茶" || got.Target != "en" {
		t.Fatalf("unexpected request %+v", got)
	}
	if auth != "Bearer tok" {
		t.Fatalf("unexpected authorization header %q", auth)
	}
	if out.Title != "Hello" || out.Body != "Tea & cake" {
		t.Fatalf("unexpected translation %+v", out)
	}
}

func TestClientTranslateKeepsAngleBrackets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":" A<B and C ","body":"Sizes: S<M<L available\n<b>new</b>"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(config.TranslationConfig{Endpoint: srv.URL})
	out, err := client.Translate(context.Background(), domain.LocalizedText{Title: "A<B と C"}, domain.LangEnglish)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out.Title != "A<B and C" {
		t.Fatalf("title truncated: %q", out.Title)
	}
	if out.Body != "Sizes: S<M<L available\n<b>new</b>" {
		t.Fatalf("body altered: %q", out.Body)
	}
}

func TestClientTranslateMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("authorization header should be omitted without a token")
		}
		_, _ = w.Write([]byte(`{"title":"Only title"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(config.TranslationConfig{Endpoint: srv.URL})
	out, err := client.Translate(context.Background(), domain.LocalizedText{Title: "t"}, domain.LangFrench)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out.Title != "Only title" || out.Body != "" {
		t.Fatalf("unexpected translation %+v", out)
	}
}

func TestClientTranslateFailures(t *testing.T) {
	t.Run("non 2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client, _ := NewClient(config.TranslationConfig{Endpoint: srv.URL})
		_, err := client.Translate(context.Background(), domain.LocalizedText{Title: "t"}, domain.LangKorean)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if statusErr.Status != http.StatusServiceUnavailable || statusErr.Lang != domain.LangKorean {
			t.Fatalf("unexpected status error %+v", statusErr)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"title":`))
		}))
		defer srv.Close()

		client, _ := NewClient(config.TranslationConfig{Endpoint: srv.URL})
		if _, err := client.Translate(context.Background(), domain.LocalizedText{Title: "t"}, domain.LangGerman); err == nil {
			t.Fatalf("expected decode error")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		client, _ := NewClient(config.TranslationConfig{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
		if _, err := client.Translate(context.Background(), domain.LocalizedText{Title: "t"}, domain.LangSpanish); err == nil {
			t.Fatalf("expected timeout error")
		}
	})
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(config.TranslationConfig{}); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
}
