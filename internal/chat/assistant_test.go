package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/knowledge"
	"github.com/hyperjump/tanya/internal/memory"
	"github.com/hyperjump/tanya/internal/score"
	"github.com/hyperjump/tanya/internal/storage"
)

type stubRetriever struct {
	passages []string
	gotK     int
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, k int) []string {
	s.gotK = k
	return s.passages
}

type stubGenerator struct {
	reply      string
	err        error
	directive  string
	lastPrompt string
}

func (g *stubGenerator) Generate(_ context.Context, directive, prompt string) (string, error) {
	g.directive = directive
	g.lastPrompt = prompt
	return g.reply, g.err
}

type stubScorer struct {
	score float64
	err   error
}

func (s stubScorer) Similarity(context.Context, string, string) (float64, error) {
	return s.score, s.err
}

func TestAssistant_Answer(t *testing.T) {
	mem := memory.NewConversation()
	mem.Append("hello", "hi there")
	ret := &stubRetriever{passages: []string{"Tanya reads PDFs."}}
	gen := &stubGenerator{reply: "It reads PDFs."}
	a := NewAssistant(ret, mem, gen, stubScorer{score: 0.82}, WithDirective("Be terse."))

	ans := a.Answer(context.Background(), "What does it read?")
	if ans.Failed || ans.Text != "It reads PDFs." || ans.Score != 0.82 || ans.MemorySize != 2 {
		t.Fatalf("unexpected answer: %+v", ans)
	}
	if ret.gotK != 1 {
		t.Errorf("default top-k = %d, want 1", ret.gotK)
	}
	if gen.directive != "Be terse." {
		t.Errorf("directive = %q", gen.directive)
	}
	want := "Past Chat: User: hello\nAssistant: hi there\nDB Context: Tanya reads PDFs.\n\nQuestion: What does it read?"
	if gen.lastPrompt != want {
		t.Errorf("prompt =\n%s\nwant\n%s", gen.lastPrompt, want)
	}
	last := mem.Recent(1)[0]
	if last.Input != "What does it read?" || last.Output != "It reads PDFs." {
		t.Errorf("turn not recorded: %+v", last)
	}
}

func TestAssistant_GenerationFailureLeavesMemoryUnchanged(t *testing.T) {
	mem := memory.NewConversation()
	mem.Append("q1", "a1")
	gen := &stubGenerator{err: errors.New("503 service unavailable")}
	a := NewAssistant(&stubRetriever{passages: []string{knowledge.NoContext}}, mem, gen, stubScorer{score: 0.9})

	ans := a.Answer(context.Background(), "anything?")
	if !ans.Failed {
		t.Fatal("expected Failed")
	}
	if ans.Text != "API Error: 503 service unavailable" {
		t.Errorf("Text = %q", ans.Text)
	}
	if ans.Score != 0 || ans.MemorySize != 1 || mem.Size() != 1 {
		t.Errorf("score=%f memory=%d size=%d", ans.Score, ans.MemorySize, mem.Size())
	}
}

func TestAssistant_ScoringFailureKeepsTurn(t *testing.T) {
	mem := memory.NewConversation()
	a := NewAssistant(&stubRetriever{passages: []string{"ctx"}}, mem, &stubGenerator{reply: "ok"}, stubScorer{score: 0.5, err: errors.New("embedder down")})
	ans := a.Answer(context.Background(), "q")
	if ans.Failed || ans.Score != 0 || ans.MemorySize != 1 {
		t.Errorf("unexpected answer: %+v", ans)
	}
}

func TestAssistant_HistoryWindowAndTopK(t *testing.T) {
	mem := memory.NewConversation()
	for _, q := range []string{"one", "two", "three"} {
		mem.Append(q, q+"!")
	}
	ret := &stubRetriever{passages: []string{"p1", "p2"}}
	gen := &stubGenerator{reply: "r"}
	a := NewAssistant(ret, mem, gen, stubScorer{}, WithHistoryWindow(2), WithTopK(2))
	ans := a.Answer(context.Background(), "four")

	if ret.gotK != 2 {
		t.Errorf("top-k = %d", ret.gotK)
	}
	if strings.Contains(gen.lastPrompt, "User: one") || !strings.Contains(gen.lastPrompt, "User: two") {
		t.Errorf("history window not applied:\n%s", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, "DB Context: p1\n\np2") {
		t.Errorf("passages not joined:\n%s", gen.lastPrompt)
	}
	if len(ans.Context) != 2 {
		t.Errorf("Context = %q", ans.Context)
	}
}

func TestBuildPrompt_NoHistory(t *testing.T) {
	got := buildPrompt(nil, knowledge.NoContext, "hi")
	want := "Past Chat: \nDB Context: No relevant context found.\n\nQuestion: hi"
	if got != want {
		t.Errorf("got %q", got)
	}
}

// contextEcho answers with the retrieved passage, the way a well-behaved
// model quotes its source.
type contextEcho struct{}

func (contextEcho) Generate(_ context.Context, _ string, prompt string) (string, error) {
	_, rest, _ := strings.Cut(prompt, "DB Context: ")
	passage, _, _ := strings.Cut(rest, "\n\nQuestion:")
	return passage, nil
}

func TestAssistant_EndToEnd(t *testing.T) {
	ctx := context.Background()
	backend, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "knowledge.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()
	emb := embedding.NewHashEmbedder(384)
	store, err := knowledge.Open(ctx, backend, "ai_knowledge_base", emb)
	if err != nil {
		t.Fatal(err)
	}

	chunks := []string{
		"Chapter one describes the history of the lighthouse on the northern cape.",
		"The keeper's daughter, Mara, rowed to the wreck during the storm of 1887.",
		"Today the lighthouse is a museum open every summer weekend.",
	}
	if n, err := store.Ingest(ctx, chunks); err != nil || n != 3 {
		t.Fatalf("first ingest = %d, %v", n, err)
	}
	if n, err := store.Ingest(ctx, chunks); err != nil || n != 0 {
		t.Fatalf("re-ingest = %d, %v", n, err)
	}

	q := "Who rowed to the wreck during the storm?"
	if got := store.Retrieve(ctx, q, 1); len(got) != 1 || got[0] != chunks[1] {
		t.Fatalf("Retrieve = %q", got)
	}

	mem := memory.NewConversation()
	a := NewAssistant(store, mem, contextEcho{}, score.New(emb))
	before := mem.Size()
	ans := a.Answer(ctx, q)
	if ans.Failed {
		t.Fatalf("answer failed: %s", ans.Text)
	}
	if mem.Size() != before+1 || ans.MemorySize != before+1 {
		t.Errorf("memory size = %d, answer reports %d", mem.Size(), ans.MemorySize)
	}
	if ans.Score < -1 || ans.Score > 1 {
		t.Errorf("score %f out of range", ans.Score)
	}
	if ans.Text != chunks[1] {
		t.Errorf("Text = %q", ans.Text)
	}
}
