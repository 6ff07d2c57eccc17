package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
)

type stubTranslator struct {
	mu       sync.Mutex
	fail     map[domain.Language]error
	calls    []domain.Language
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *stubTranslator) Translate(ctx context.Context, text domain.LocalizedText, target domain.Language) (domain.LocalizedText, error) {
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.calls = append(s.calls, target)
	err := s.fail[target]
	s.mu.Unlock()
	if err != nil {
		return domain.LocalizedText{}, err
	}
	return domain.LocalizedText{
		Title: "  " + string(target) + ":" + text.Title + " ",
		Body:  "\t" + string(target) + ":" + text.Body + "\n",
	}, nil
}

func TestTranslationFanoutPartialFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	translator := &stubTranslator{fail: map[domain.Language]error{
		domain.LangChineseSimplified: errors.New("rate limited"),
		domain.LangFrench:            errors.New("timeout"),
	}}
	fanout, err := NewTranslationFanout(translator, WithFanoutLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("NewTranslationFanout: %v", err)
	}
	fanout.languages = []domain.Language{
		domain.LangEnglish,
		domain.LangChineseSimplified,
		domain.LangKorean,
		domain.LangFrench,
		domain.LangGerman,
	}

	got := fanout.TranslateAll(context.Background(), "タイトル", "本文")
	if len(got) != 3 {
		t.Fatalf("expected 3 translations, got %d: %+v", len(got), got)
	}
	wantOrder := []domain.Language{domain.LangEnglish, domain.LangKorean, domain.LangGerman}
	for i, lang := range wantOrder {
		if got[i].Lang != lang {
			t.Fatalf("position %d: expected %s, got %s", i, lang, got[i].Lang)
		}
		if got[i].Title != string(lang)+":タイトル" || got[i].Body != string(lang)+":本文" {
			t.Fatalf("expected trimmed output, got %+v", got[i])
		}
	}
	if len(translator.calls) != 5 {
		t.Fatalf("expected one request per language, got %d", len(translator.calls))
	}
	if logs.FilterMessage("translation failed").Len() != 2 {
		t.Fatalf("expected two failure warnings, got %d", logs.FilterMessage("translation failed").Len())
	}
}

func TestTranslationFanoutAllFail(t *testing.T) {
	fail := map[domain.Language]error{}
	for _, lang := range domain.TargetLanguages() {
		fail[lang] = errors.New("down")
	}
	fanout, _ := NewTranslationFanout(&stubTranslator{fail: fail})
	if got := fanout.TranslateAll(context.Background(), "t", "b"); len(got) != 0 {
		t.Fatalf("expected no translations, got %+v", got)
	}
}

func TestTranslationFanoutCoversRosterConcurrently(t *testing.T) {
	translator := &stubTranslator{delay: 20 * time.Millisecond}
	fanout, _ := NewTranslationFanout(translator)

	got := fanout.TranslateAll(context.Background(), "t", "")
	roster := domain.TargetLanguages()
	if len(got) != len(roster) {
		t.Fatalf("expected %d translations, got %d", len(roster), len(got))
	}
	for i, lang := range roster {
		if got[i].Lang != lang {
			t.Fatalf("position %d: expected %s, got %s", i, lang, got[i].Lang)
		}
	}
	if translator.peak.Load() < 2 {
		t.Fatalf("expected concurrent requests, peak was %d", translator.peak.Load())
	}
}

func TestTranslationFanoutRespectsConcurrencyLimit(t *testing.T) {
	translator := &stubTranslator{delay: 5 * time.Millisecond}
	fanout, _ := NewTranslationFanout(translator, WithFanoutConcurrency(3))
	fanout.TranslateAll(context.Background(), "t", "b")
	if peak := translator.peak.Load(); peak > 3 {
		t.Fatalf("expected at most 3 in flight, got %d", peak)
	}
}

func TestNewTranslationFanoutRequiresTranslator(t *testing.T) {
	if _, err := NewTranslationFanout(nil); err == nil {
		t.Fatalf("expected error for nil translator")
	}
}
