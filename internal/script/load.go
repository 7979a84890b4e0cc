package script

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultScript []byte

// Default returns the embedded landing page script.
func Default() (*Graph, error) {
	return Parse(defaultScript)
}

// DefaultSource returns the raw YAML of the embedded script.
func DefaultSource() []byte {
	out := make([]byte, len(defaultScript))
	copy(out, defaultScript)
	return out
}

// Load reads and validates a script from a YAML file.
func Load(path string) (*Graph, error) {
	cleanPath := filepath.Clean(path)
	b, err := os.ReadFile(cleanPath) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, err
	}
	g, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("load script %s: %w", cleanPath, err)
	}
	return g, nil
}

// Parse validates raw YAML against the document schema, decodes it and
// builds the graph.
func Parse(b []byte) (*Graph, error) {
	if err := ValidateSchema(b); err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return Build(doc)
}

// Build validates a decoded document and resolves it into a Graph. Every
// authoring defect found is reported in a single *ConfigError.
func Build(doc Document) (*Graph, error) {
	ce := &ConfigError{}

	g := &Graph{
		title:    doc.Title,
		cast:     doc.Cast,
		chooser:  doc.Chooser,
		index:    map[int]int{},
		messages: map[int]*Message{},
		branch:   map[int]*Message{},
		detours:  map[int]*Detour{},
	}
	if !g.chooser.valid() {
		ce.add("chooser: unknown speaker %q", doc.Chooser)
	}

	collect(ce, "messages", doc.Messages, g.messages)
	collect(ce, "branch_messages", doc.BranchMessages, g.branch)
	for _, m := range doc.BranchMessages {
		if len(m.Choices) > 0 {
			ce.add("branch_messages: message %d cannot carry choices", m.ID)
		}
	}

	if len(doc.MainFlow) == 0 {
		ce.add("main_flow: empty")
	}
	for i, id := range doc.MainFlow {
		if _, ok := g.messages[id]; !ok {
			ce.add("main_flow[%d]: message %d does not exist", i, id)
			continue
		}
		if prev, dup := g.index[id]; dup {
			ce.add("main_flow[%d]: message %d already at position %d", i, id, prev)
			continue
		}
		g.index[id] = i
		g.flow = append(g.flow, id)
	}

	for _, b := range doc.Branches {
		d := &Detour{Trigger: b.Trigger, Rejoin: b.Rejoin}
		if _, dup := g.detours[b.Trigger]; dup {
			ce.add("branches: trigger %d defined twice", b.Trigger)
			continue
		}
		if _, inFlow := g.index[b.Trigger]; inFlow {
			ce.add("branches: trigger %d is a main flow message", b.Trigger)
		}
		if len(b.Messages) == 0 {
			ce.add("branches: trigger %d has no messages", b.Trigger)
		}
		for _, id := range b.Messages {
			m, ok := g.branch[id]
			if !ok {
				ce.add("branches: trigger %d references missing branch message %d", b.Trigger, id)
				continue
			}
			d.Messages = append(d.Messages, m)
		}
		ri, ok := g.index[b.Rejoin]
		if !ok {
			ce.add("branches: trigger %d rejoins at %d which is not in main_flow", b.Trigger, b.Rejoin)
		}
		d.RejoinIndex = ri
		g.detours[b.Trigger] = d
	}

	for _, m := range doc.Messages {
		if len(m.Choices) == 0 {
			continue
		}
		i, inFlow := g.index[m.ID]
		if !inFlow {
			ce.add("message %d: has choices but is not in main_flow", m.ID)
			continue
		}
		for j, c := range m.Choices {
			if c.Label == "" {
				ce.add("message %d choice %d: empty label", m.ID, j)
			}
			if _, ok := g.detours[c.Target]; ok {
				continue
			}
			if i+1 >= len(g.flow) || g.flow[i+1] != c.Target {
				ce.add("message %d choice %q: target %d is neither a branch trigger nor the next main flow message", m.ID, c.Label, c.Target)
			}
		}
	}

	if ce.HasErrors() {
		return nil, ce
	}
	return g, nil
}

func collect(ce *ConfigError, section string, msgs []Message, into map[int]*Message) {
	for i := range msgs {
		cp := msgs[i]
		cp.Choices = append([]Choice(nil), msgs[i].Choices...)
		m := &cp
		if _, dup := into[m.ID]; dup {
			ce.add("%s: duplicate id %d", section, m.ID)
			continue
		}
		if !m.Speaker.valid() {
			ce.add("%s: message %d has unknown speaker %q", section, m.ID, m.Speaker)
		}
		if m.Text == "" {
			ce.add("%s: message %d has empty text", section, m.ID)
		}
		into[m.ID] = m
	}
}
