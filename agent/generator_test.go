package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/wa3i/voice-agent/history"
	"github.com/wa3i/voice-agent/language"
)

// stubCompleter records the last request and returns a scripted result
type stubCompleter struct {
	reply   string
	err     error
	lastReq CompletionRequest
	calls   int
}

func (s *stubCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.lastReq = req
	s.calls++
	return s.reply, s.err
}

func TestGenerateSuccess(t *testing.T) {
	completer := &stubCompleter{reply: "I hear you."}
	gen := NewGenerator(completer, language.Select(language.English))
	store := history.NewStore(10)

	reply := gen.Generate(context.Background(), store, "hello")

	if reply != "I hear you." {
		t.Fatalf("reply = %q", reply)
	}
	if completer.calls != 1 {
		t.Fatalf("completer called %d times, want 1", completer.calls)
	}

	req := completer.lastReq
	if req.Model != "anthropic/claude-3-haiku" {
		t.Errorf("model = %q", req.Model)
	}
	if req.Temperature != 0.7 || req.MaxTokens != 150 {
		t.Errorf("settings = %v/%d", req.Temperature, req.MaxTokens)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(req.Messages))
	}
	if req.Messages[0].Role != history.RoleSystem {
		t.Errorf("first message role = %q", req.Messages[0].Role)
	}
	if req.Messages[1].Role != history.RoleUser || req.Messages[1].Content != "hello" {
		t.Errorf("last message = %+v", req.Messages[1])
	}
}

func TestGenerateIncludesHistory(t *testing.T) {
	completer := &stubCompleter{reply: "ok"}
	gen := NewGenerator(completer, language.Select(language.English))
	store := history.NewStore(10)
	store.Append(history.TurnMessage{Role: history.RoleUser, Content: "earlier question"})
	store.Append(history.TurnMessage{Role: history.RoleAssistant, Content: "earlier answer"})

	gen.Generate(context.Background(), store, "followup")

	msgs := completer.lastReq.Messages
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	if msgs[1].Content != "earlier question" || msgs[2].Content != "earlier answer" {
		t.Errorf("history not carried in order: %+v %+v", msgs[1], msgs[2])
	}
}

func TestGenerateFallbackOnError(t *testing.T) {
	completer := &stubCompleter{err: errors.New("upstream down")}

	for _, tag := range []string{language.Arabic, language.English} {
		bundle := language.Select(tag)
		gen := NewGenerator(completer, bundle)

		reply := gen.Generate(context.Background(), history.NewStore(10), "hello")
		if reply != bundle.Fallback {
			t.Errorf("%s: reply = %q, want fallback %q", tag, reply, bundle.Fallback)
		}
	}
}

func TestGenerateFallbackOnEmptyReply(t *testing.T) {
	completer := &stubCompleter{reply: ""}
	bundle := language.Select(language.Arabic)
	gen := NewGenerator(completer, bundle)

	reply := gen.Generate(context.Background(), history.NewStore(10), "مرحبا")
	if reply != bundle.Fallback {
		t.Fatalf("reply = %q, want fallback", reply)
	}
}

func TestGenerateNoRetry(t *testing.T) {
	completer := &stubCompleter{err: errors.New("flaky")}
	gen := NewGenerator(completer, language.Select(language.English))

	gen.Generate(context.Background(), history.NewStore(10), "hello")
	if completer.calls != 1 {
		t.Fatalf("completer called %d times, want exactly 1", completer.calls)
	}
}

func TestGenerateDoesNotMutateStore(t *testing.T) {
	completer := &stubCompleter{reply: "fine"}
	gen := NewGenerator(completer, language.Select(language.English))
	store := history.NewStore(10)

	gen.Generate(context.Background(), store, "hello")
	if store.Len() != 0 {
		t.Fatalf("store mutated: len = %d", store.Len())
	}
}
