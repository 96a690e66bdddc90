package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/search"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	ans := models.Answer{Text: "It is lit at dusk.", Score: 0.42, MemorySize: 3}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, ans, OutputJSON); err != nil {
		t.Fatalf("WriteAnswer(json): %v", err)
	}
	var decoded models.Answer
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Text != ans.Text || decoded.Score != ans.Score || decoded.MemorySize != 3 {
		t.Errorf("decoded %+v, want %+v", decoded, ans)
	}
}

func TestWriteAnswer_text(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteAnswer(&buf, models.Answer{Text: "Forty-two.", Score: 0.5, MemorySize: 1}, OutputText)
	out := buf.String()
	for _, sub := range []string{"Forty-two.", "Score: 0.5000", "Memory: 1 turns"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteAnswer_textFailure(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteAnswer(&buf, models.Answer{Text: "API Error: boom", Failed: true}, OutputText)
	out := buf.String()
	if strings.Contains(out, "Score:") {
		t.Errorf("failed answer should not print a score:\n%s", out)
	}
	if !strings.Contains(out, "API Error: boom") {
		t.Errorf("failure text missing:\n%s", out)
	}
}

func TestWritePassages(t *testing.T) {
	results := []*search.Result{
		{ID: "7", Text: "Tides turn twice a day.", Score: 0.9, KeywordScore: 1, SemanticScore: 0.8, Rank: 1},
	}
	var buf bytes.Buffer
	if err := WritePassages(&buf, "tides", results, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{`Found 1 passages for "tides"`, "Rank: 1", "ID: 7", "Tides turn twice a day."} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WritePassages(&buf, "none", nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"hits": []`) {
		t.Errorf("empty hits should encode as []: %s", buf.String())
	}
}

func TestWriteStatus_textSorted(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteStatus(&buf, map[string]interface{}{"passages": 3, "collection": "kb"}, OutputText)
	out := buf.String()
	if strings.Index(out, "collection:") > strings.Index(out, "passages:") {
		t.Errorf("keys should be sorted:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty", "", 5, ""},
		{"short", "hi", 5, "hi"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"multibyte", "日本語のテキスト", 3, "日本語..."},
		{"maxLen zero", "ab", 0, "ab"},
		{"maxLen negative", "ab", -1, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.s, tt.maxLen)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:               "0 B",
		1023:            "1023 B",
		1024:            "1.0 KiB",
		1536:            "1.5 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
