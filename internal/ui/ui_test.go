package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := RenderTable(
		[]string{"MAC", "NAME"},
		[][]string{
			{"DE:AD:BE:EF:00:01", "left-foot"},
			{"01:02:03:04:05:06", "chest"},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	col := strings.Index(lines[1], "left-foot")
	if col < 0 || strings.Index(lines[2], "chest") != col {
		t.Errorf("second column not aligned:\n%s", out)
	}
}

func TestResult_RendersDetailsInOrder(t *testing.T) {
	r := NewSuccessResult("Replay complete",
		Param{Key: "Datagrams", Value: "12"},
		Param{Key: "Packets", Value: "30"},
	).SetWidth(80)
	r.AddDetail("Skipped", "1")

	out := r.Render()
	d, p, s := strings.Index(out, "Datagrams"), strings.Index(out, "Packets"), strings.Index(out, "Skipped")
	if d < 0 || p < d || s < p {
		t.Errorf("details out of order:\n%s", out)
	}
	if !strings.Contains(out, SuccessMarker) {
		t.Error("missing success marker")
	}
}

func TestResult_Failure(t *testing.T) {
	out := NewFailureResult("Replay failed", errors.New("not a capture"), "Check the file is a pcap").SetWidth(80).Render()
	for _, want := range []string{FailureMarker, "not a capture", "Troubleshooting", "Check the file is a pcap"} {
		if !strings.Contains(out, want) {
			t.Errorf("failure box missing %q", want)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"exact phrase", "forget all\n", true},
		{"surrounding space", "  forget all  \n", true},
		{"wrong phrase", "yes\n", false},
		{"no input", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := Confirm(strings.NewReader(tt.input), &out, "Forget trackers", []string{"Removes every nickname"}, "forget all")
			if got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgress_Percent(t *testing.T) {
	p := NewProgress("", 200, "datagrams")
	p.Update(50, 3)
	if got := p.Percent(); got != 0.25 {
		t.Errorf("Percent() = %v, want 0.25", got)
	}
	p.Update(500, 3)
	if got := p.Percent(); got != 1 {
		t.Errorf("Percent() = %v, want capped at 1", got)
	}
	if !strings.Contains(p.Render(), "3 datagrams") {
		t.Errorf("Render() = %q", p.Render())
	}
	if got := NewProgress("", 0, "x").Percent(); got != 0 {
		t.Errorf("unknown total Percent() = %v, want 0", got)
	}
}
