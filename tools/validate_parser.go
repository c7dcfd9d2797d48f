//go:build ignore

package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/muurk/trackd/internal/protocol"
)

// CapturedDatagram matches the structure from internal/server/analysis.go
type CapturedDatagram struct {
	Seq        int      `json:"seq"`
	Direction  string   `json:"direction"`
	PayloadHex string   `json:"payload_hex"`
	Kinds      []string `json:"kinds"`
}

// Statistics tracks parsing results
type Statistics struct {
	TotalFiles     int
	TotalDatagrams int
	Inbound        int
	Matched        int
	Packets        int
	Dropped        int
	Kinds          map[string]int
	Mismatches     []Mismatch
}

// Mismatch is an inbound datagram the current parser decodes differently
// from when it was captured.
type Mismatch struct {
	File       string
	LineNumber int
	Seq        int
	PayloadHex string
	Recorded   []string
	Now        []string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_parser <directory-or-file>")
		fmt.Println("Example: go run tools/validate_parser.go captures/")
		fmt.Println("         go run tools/validate_parser.go capture-20261019-104043.jsonl")
		os.Exit(1)
	}

	path := os.Args[1]
	stats := Statistics{Kinds: make(map[string]int)}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.jsonl"))
		if err != nil {
			fmt.Printf("Error finding JSONL files: %v\n", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Printf("No JSONL files found in %s\n", path)
			os.Exit(1)
		}
	}

	fmt.Printf("=== Trackd Parser Validator ===\n")
	fmt.Printf("Files to process: %d\n\n", len(files))

	parser := protocol.NewParser()
	for _, file := range files {
		processFile(parser, file, &stats)
	}

	printStatistics(&stats)
	if len(stats.Mismatches) > 0 {
		os.Exit(1)
	}
}

func processFile(parser *protocol.Parser, filename string, stats *Statistics) {
	stats.TotalFiles++

	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error reading file %s: %v\n", filename, err)
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), 1024*1024)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		if len(sc.Bytes()) == 0 {
			continue
		}

		var dg CapturedDatagram
		if err := json.Unmarshal(sc.Bytes(), &dg); err != nil {
			fmt.Printf("Error parsing JSON in %s line %d: %v\n", filename, lineNum, err)
			continue
		}
		stats.TotalDatagrams++
		if dg.Direction != "tracker->server" {
			continue
		}
		stats.Inbound++

		payload, err := hex.DecodeString(dg.PayloadHex)
		if err != nil {
			fmt.Printf("Bad hex in %s line %d: %v\n", filename, lineNum, err)
			continue
		}

		res := parser.Parse(payload, nil)
		stats.Packets += len(res.Packets)
		stats.Dropped += res.Dropped()

		kinds := make([]string, 0, len(res.Packets))
		for _, p := range res.Packets {
			kinds = append(kinds, p.Kind().String())
			stats.Kinds[p.Kind().String()]++
		}

		if !slices.Equal(kinds, dg.Kinds) {
			stats.Mismatches = append(stats.Mismatches, Mismatch{
				File:       filename,
				LineNumber: lineNum,
				Seq:        dg.Seq,
				PayloadHex: dg.PayloadHex,
				Recorded:   dg.Kinds,
				Now:        kinds,
			})
			continue
		}
		stats.Matched++
	}
	if err := sc.Err(); err != nil {
		fmt.Printf("Error reading file %s: %v\n", filename, err)
	}
}

func printStatistics(stats *Statistics) {
	fmt.Printf("\n========================================\n")
	fmt.Printf("VALIDATION RESULTS\n")
	fmt.Printf("========================================\n\n")

	fmt.Printf("Files Processed:    %d\n", stats.TotalFiles)
	fmt.Printf("Total Datagrams:    %d\n", stats.TotalDatagrams)
	fmt.Printf("Inbound:            %d\n", stats.Inbound)
	if stats.Inbound > 0 {
		fmt.Printf("Matching Capture:   %d (%.2f%%)\n", stats.Matched,
			float64(stats.Matched)/float64(stats.Inbound)*100)
	}
	fmt.Printf("Packets Decoded:    %d\n", stats.Packets)
	fmt.Printf("Frames Dropped:     %d\n", stats.Dropped)

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("PACKET KIND DISTRIBUTION\n")
	fmt.Printf("----------------------------------------\n")
	names := make([]string, 0, len(stats.Kinds))
	for name := range stats.Kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		count := stats.Kinds[name]
		fmt.Printf("%-22s %d (%.2f%%)\n", name, count, float64(count)/float64(stats.Packets)*100)
	}

	if len(stats.Mismatches) > 0 {
		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("MISMATCHES (%d total)\n", len(stats.Mismatches))
		fmt.Printf("----------------------------------------\n")

		maxShow := 10
		if len(stats.Mismatches) > maxShow {
			fmt.Printf("(Showing first %d of %d)\n\n", maxShow, len(stats.Mismatches))
		}
		for i, m := range stats.Mismatches {
			if i >= maxShow {
				break
			}
			fmt.Printf("\nMismatch #%d:\n", i+1)
			fmt.Printf("  File: %s (line %d, seq %d)\n", m.File, m.LineNumber, m.Seq)
			fmt.Printf("  Recorded: %v\n", m.Recorded)
			fmt.Printf("  Now:      %v\n", m.Now)
			hexPreview := m.PayloadHex
			if len(hexPreview) > 80 {
				hexPreview = hexPreview[:80] + "..."
			}
			fmt.Printf("  Payload: %s\n", hexPreview)
		}
	}

	fmt.Printf("\n========================================\n")
	if len(stats.Mismatches) == 0 {
		fmt.Printf("✅ SUCCESS: Parser output matches every capture\n")
	} else {
		fmt.Printf("⚠️  ISSUES FOUND: %d datagrams decode differently\n", len(stats.Mismatches))
	}
	fmt.Printf("========================================\n")
}
