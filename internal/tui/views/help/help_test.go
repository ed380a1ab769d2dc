package help

import (
	"strings"
	"testing"
)

func TestMarkdownListsBindings(t *testing.T) {
	md := Markdown([]Binding{
		{Keys: "r", Desc: "reconnect"},
		{Keys: "s", Desc: "start/stop capture"},
	})
	for _, want := range []string{"| `r` | reconnect |", "| `s` | start/stop capture |"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestViewRendersAndCaches(t *testing.T) {
	m := New("notty", []Binding{{Keys: "q", Desc: "quit"}})
	v := m.View(80)
	if !strings.Contains(v, "quit") {
		t.Errorf("rendered help should mention quit:\n%s", v)
	}
	if !strings.Contains(v, "esc:close") {
		t.Error("rendered help should show how to close it")
	}

	first := m.rendered
	m.View(80)
	if m.rendered != first {
		t.Error("same width should reuse the cached render")
	}
	m.View(120)
	if m.width != 114 {
		t.Errorf("expected cache keyed on width 114, got %d", m.width)
	}
}
