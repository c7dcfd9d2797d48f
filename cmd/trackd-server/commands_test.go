package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/netip"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/muurk/trackd/internal/config"
	"github.com/muurk/trackd/internal/protocol"
	"github.com/muurk/trackd/internal/replay"
)

func TestNormalizeMAC(t *testing.T) {
	got, err := normalizeMAC("de-ad-be-ef-00-01")
	if err != nil {
		t.Fatalf("normalizeMAC() error = %v", err)
	}
	if got != "DE:AD:BE:EF:00:01" {
		t.Errorf("normalizeMAC() = %q", got)
	}
	if _, err := normalizeMAC("nope"); err == nil {
		t.Error("normalizeMAC() accepted an invalid address")
	}
}

func TestTrackerRow(t *testing.T) {
	seen := time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)
	tests := []struct {
		name  string
		entry config.TrackerEntry
		want  []string
	}{
		{
			name:  "empty",
			entry: config.TrackerEntry{MAC: "AA:BB:CC:DD:EE:FF", Tracker: &config.Tracker{}},
			want:  []string{"AA:BB:CC:DD:EE:FF", "-", "-", "0", "-", "-"},
		},
		{
			name: "full",
			entry: config.TrackerEntry{MAC: "AA:BB:CC:DD:EE:01", Tracker: &config.Tracker{
				Nickname:      "left foot",
				LastIP:        "192.168.1.20",
				LastSeen:      seen,
				BoardType:     4,
				Firmware:      "0.4.0",
				FirmwareBuild: 17,
			}},
			want: []string{"AA:BB:CC:DD:EE:01", "left foot", "0.4.0 (17)", "4", "192.168.1.20", "2026-03-04 05:06:07"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, trackerRow(tt.entry)); diff != "" {
				t.Errorf("trackerRow() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := portLabel(0); got != "any" {
		t.Errorf("portLabel(0) = %q", got)
	}
}

func TestTrackersRenameAndForget(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { configPath = "" })

	var out bytes.Buffer
	trackersRenameCmd.SetOut(&out)
	if err := runTrackersRename(trackersRenameCmd, []string{"de:ad:be:ef:00:01", "chest"}); err != nil {
		t.Fatalf("rename error = %v", err)
	}

	reg, err := loadRegistry()
	if err != nil {
		t.Fatal(err)
	}
	if got := reg.GetDisplayName("DE:AD:BE:EF:00:01"); got != "chest" {
		t.Errorf("display name = %q, want chest", got)
	}

	trackersForgetCmd.SetOut(&out)
	if err := runTrackersForget(trackersForgetCmd, []string{"DE:AD:BE:EF:00:01"}); err != nil {
		t.Fatalf("forget error = %v", err)
	}
	if err := runTrackersForget(trackersForgetCmd, []string{"DE:AD:BE:EF:00:01"}); err == nil ||
		!strings.Contains(err.Error(), "not in the config file") {
		t.Errorf("second forget error = %v", err)
	}
	if err := runTrackersForget(trackersForgetCmd, nil); err == nil {
		t.Error("forget without a MAC or --all succeeded")
	}

	reg, err = loadRegistry()
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.ListTrackers()) != 0 {
		t.Errorf("trackers left after forget: %v", reg.ListTrackers())
	}
}

type failingWriter struct {
	writes int
}

func (w *failingWriter) Write(b []byte) (int, error) {
	w.writes++
	return 0, errors.New("broken pipe")
}

func TestJSONLines(t *testing.T) {
	dg := replay.Datagram{
		Time: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Src:  netip.MustParseAddrPort("192.168.1.50:4210"),
	}

	var buf bytes.Buffer
	jl := &jsonLines{enc: json.NewEncoder(&buf)}
	jl.write(dg, &protocol.PingPong{ID: 7})
	if jl.err != nil {
		t.Fatalf("write() error = %v", jl.err)
	}
	var rec struct {
		Src      string `json:"src"`
		KindName string `json:"kind_name"`
		Packet   struct {
			ID int32 `json:"id"`
		} `json:"packet"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	if rec.Src != "192.168.1.50:4210" || rec.KindName != protocol.KindPingPong.String() || rec.Packet.ID != 7 {
		t.Errorf("record = %+v", rec)
	}

	w := &failingWriter{}
	jl = &jsonLines{enc: json.NewEncoder(w)}
	jl.write(dg, &protocol.PingPong{ID: 1})
	jl.write(dg, &protocol.PingPong{ID: 2})
	if jl.err == nil || !strings.Contains(jl.err.Error(), "broken pipe") {
		t.Errorf("err = %v, want the write error", jl.err)
	}
	if w.writes != 1 {
		t.Errorf("writes = %d, want 1 (stop after the first failure)", w.writes)
	}
}
