package script

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const tinyYAML = `title: "Tiny"
cast:
  A: {name: "Alice"}
  B: {name: "Bob"}
chooser: A
main_flow: [1, 2, 3]
messages:
  - id: 1
    speaker: A
    text: "Hi"
  - id: 2
    speaker: B
    text: "Pick one"
    choices:
      - label: "Go on"
        target: 3
      - label: "Detour"
        target: 9
  - id: 3
    speaker: A
    text: "Bye"
  - id: 9
    speaker: A
    text: "Detour"
branches:
  - trigger: 9
    messages: [90]
    rejoin: 3
branch_messages:
  - id: 90
    speaker: B
    text: "Side note"
`

func tinyDoc() Document {
	return Document{
		Title:    "Tiny",
		Cast:     Cast{A: Role{Name: "Alice"}, B: Role{Name: "Bob"}},
		Chooser:  SpeakerA,
		MainFlow: []int{1, 2, 3},
		Messages: []Message{
			{ID: 1, Speaker: SpeakerA, Text: "Hi"},
			{ID: 2, Speaker: SpeakerB, Text: "Pick one", Choices: []Choice{
				{Label: "Go on", Target: 3},
				{Label: "Detour", Target: 9},
			}},
			{ID: 3, Speaker: SpeakerA, Text: "Bye"},
			{ID: 9, Speaker: SpeakerA, Text: "Detour"},
		},
		Branches:       []Branch{{Trigger: 9, Messages: []int{90}, Rejoin: 3}},
		BranchMessages: []Message{{ID: 90, Speaker: SpeakerB, Text: "Side note"}},
	}
}

func TestLoad_Valid(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "script.yaml")
	if err := os.WriteFile(path, []byte(tinyYAML), 0o600); err != nil { //nolint:gosec // test file permissions are acceptable
		t.Fatalf("Failed to write script: %v", err)
	}

	g, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error loading script: %v", err)
	}
	if g.Len() != 3 {
		t.Errorf("Expected main flow of 3, got %d", g.Len())
	}
	if g.Title() != "Tiny" {
		t.Errorf("Expected title 'Tiny', got %q", g.Title())
	}
	if g.Cast().Name(SpeakerB) != "Bob" {
		t.Errorf("Expected B to be Bob, got %q", g.Cast().Name(SpeakerB))
	}
	d, ok := g.Detour(9)
	if !ok {
		t.Fatal("Expected detour for target 9")
	}
	if d.RejoinIndex != 2 || len(d.Messages) != 1 || d.Messages[0].ID != 90 {
		t.Errorf("Unexpected detour: %+v", d)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("does_not_exist.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestParse_SchemaRejectsUnknownField(t *testing.T) {
	bad := strings.Replace(tinyYAML, "chooser: A", "chooser: A\nspeed: fast", 1)
	_, err := Parse([]byte(bad))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ConfigError, got %v", err)
	}
}

func TestParse_SchemaRejectsBadSpeaker(t *testing.T) {
	bad := strings.Replace(tinyYAML, "speaker: B\n    text: \"Side note\"", "speaker: C\n    text: \"Side note\"", 1)
	if _, err := Parse([]byte(bad)); err == nil {
		t.Error("Expected error for speaker C")
	}
}

func TestDefault(t *testing.T) {
	g, err := Default()
	if err != nil {
		t.Fatalf("Default script invalid: %v", err)
	}
	if g.Len() != 18 {
		t.Errorf("Expected 18 main flow messages, got %d", g.Len())
	}
	if _, ok := g.IndexOf(12); ok {
		t.Error("Expected message 12 to be excluded from the main flow")
	}
	d, ok := g.Detour(12)
	if !ok {
		t.Fatal("Expected the cost detour on target 12")
	}
	if g.At(d.RejoinIndex).ID != 11 {
		t.Errorf("Expected rejoin at message 11, got %d", g.At(d.RejoinIndex).ID)
	}
	if d.Messages[0].ID != 120 || d.Messages[0].Speaker != SpeakerB {
		t.Errorf("Unexpected branch message: %+v", d.Messages[0])
	}
	m, _ := g.Message(7)
	if len(m.Choices) != 2 || m.Choices[1].Label != "비용은 얼마 정도야?" {
		t.Errorf("Unexpected choices on 7: %+v", m.Choices)
	}
}

func TestGraph_Next(t *testing.T) {
	g, err := Build(tinyDoc())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if next, ok := g.Next(1); !ok || next != 2 {
		t.Errorf("Expected 1 -> 2, got %d %v", next, ok)
	}
	if _, ok := g.Next(3); ok {
		t.Error("Expected no edge after the last message")
	}
	if _, ok := g.Next(9); ok {
		t.Error("Expected no default edge from a message outside the flow")
	}
}

func TestBuild_CopiesMessages(t *testing.T) {
	doc := tinyDoc()
	g, err := Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	doc.Messages[0].Text = "mutated"
	doc.Messages[1].Choices[0].Label = "mutated"
	if g.At(0).Text != "Hi" {
		t.Error("Graph shares message storage with the document")
	}
	if g.At(1).Choices[0].Label != "Go on" {
		t.Error("Graph shares choice storage with the document")
	}
}

func TestBuild_AuthoringErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Document)
		want   string
	}{
		{"missing main flow id", func(d *Document) { d.MainFlow = append(d.MainFlow, 42) }, "message 42 does not exist"},
		{"repeated main flow id", func(d *Document) { d.MainFlow = []int{1, 2, 3, 1} }, "already at position"},
		{"empty main flow", func(d *Document) { d.MainFlow = nil }, "main_flow: empty"},
		{"duplicate id", func(d *Document) { d.Messages = append(d.Messages, Message{ID: 1, Speaker: SpeakerA, Text: "x"}) }, "duplicate id 1"},
		{"empty text", func(d *Document) { d.Messages[0].Text = "" }, "empty text"},
		{"dangling choice", func(d *Document) { d.Messages[1].Choices[0].Target = 77 }, "target 77"},
		{"choice skipping ahead", func(d *Document) {
			d.MainFlow = []int{1, 2, 9, 3}
			d.Branches = nil
			d.BranchMessages = nil
		}, "target 3"},
		{"missing branch message", func(d *Document) { d.Branches[0].Messages = []int{91} }, "missing branch message 91"},
		{"rejoin outside flow", func(d *Document) { d.Branches[0].Rejoin = 9 }, "rejoins at 9"},
		{"trigger in flow", func(d *Document) { d.Branches[0].Trigger = 3 }, "trigger 3 is a main flow message"},
		{"choices off flow", func(d *Document) {
			d.Messages[3].Choices = []Choice{{Label: "x", Target: 1}}
		}, "not in main_flow"},
		{"bad chooser", func(d *Document) { d.Chooser = "C" }, "chooser"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tinyDoc()
			tt.mutate(&d)
			_, err := Build(d)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Expected *ConfigError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestSchema(t *testing.T) {
	b, err := Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	for _, want := range []string{`"main_flow"`, `"branch_messages"`, `"enum"`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("Expected schema to contain %s", want)
		}
	}
}
