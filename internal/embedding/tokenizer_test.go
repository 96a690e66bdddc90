package embedding

import (
	"slices"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("Hello, world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths = %d %d %d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsToken || ids[3] != sepToken {
		t.Errorf("expected [CLS] w w [SEP], got %v", ids[:4])
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention mask should cover [CLS]..[SEP] only: %v", attn)
	}
	for _, id := range ids[1:3] {
		if id == clsToken || id == sepToken || id == 0 {
			t.Errorf("word token collides with a special token: %d", id)
		}
	}
}

func TestSimpleTokenizer_truncates(t *testing.T) {
	ids, attn, _ := (&SimpleTokenizer{}).Tokenize("a b c d e f g h", 4)
	if len(ids) != 4 || ids[3] != sepToken || attn[3] != 1 {
		t.Errorf("got ids=%v attn=%v", ids, attn)
	}
}

func TestTerms(t *testing.T) {
	got := Terms("  The café's menu: 3 items!\n")
	want := []string{"the", "café", "s", "menu", "3", "items"}
	if !slices.Equal(got, want) {
		t.Errorf("Terms = %q, want %q", got, want)
	}
	if Terms("") != nil {
		t.Error("empty string should return nil")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") != 96354 {
		t.Errorf("HashString(abc) = %d", HashString("abc"))
	}
	long := string(make([]rune, 1000))
	for _, s := range []string{"", "x", long, "overflowing strings wrap around uint32"} {
		if HashString(s) < 0 {
			t.Errorf("HashString(%q) is negative", s)
		}
	}
}
