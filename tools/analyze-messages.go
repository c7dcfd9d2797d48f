//go:build ignore

package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/muurk/trackd/internal/protocol"
)

// DatagramAnalysis matches the structure from internal/server/analysis.go
type DatagramAnalysis struct {
	Timestamp  string   `json:"timestamp"`
	Seq        int      `json:"seq"`
	RemoteAddr string   `json:"remote_addr"`
	Direction  string   `json:"direction"`
	Length     int      `json:"length"`
	PayloadHex string   `json:"payload_hex"`
	Kinds      []string `json:"kinds"`
	Error      string   `json:"error"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze-messages <jsonl-file> [seq]")
		fmt.Println("Example: go run tools/analyze-messages.go captures/capture-20261019-030905.jsonl")
		os.Exit(1)
	}

	filename := os.Args[1]
	only := -1
	if len(os.Args) > 2 {
		if _, err := fmt.Sscanf(os.Args[2], "%d", &only); err != nil {
			fmt.Printf("Invalid sequence number %q\n", os.Args[2])
			os.Exit(1)
		}
	}

	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	fmt.Printf("=== Trackd Datagram Analyzer ===\n")
	fmt.Printf("File: %s\n\n", filename)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var dg DatagramAnalysis
		if err := json.Unmarshal(sc.Bytes(), &dg); err != nil {
			fmt.Printf("Error parsing line %d: %v\n", line, err)
			continue
		}
		if only >= 0 && dg.Seq != only {
			continue
		}
		analyzeDatagram(&dg)
	}
	if err := sc.Err(); err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
}

func analyzeDatagram(dg *DatagramAnalysis) {
	payload, err := hex.DecodeString(dg.PayloadHex)
	if err != nil {
		fmt.Printf("Error decoding hex: %v\n", err)
		return
	}

	fmt.Printf("========================================\n")
	fmt.Printf("Datagram #%d - %d bytes - %s %s - %s\n", dg.Seq, len(payload), dg.Direction, dg.RemoteAddr, dg.Timestamp)
	fmt.Printf("========================================\n\n")

	// Frame boundaries as the parser walks them
	fmt.Println("Frames:")
	fmt.Println("Offset  Length  Verifier  Kind")
	fmt.Println("------  ------  --------  ----------------------")
	headers, scanErr := protocol.ScanHeaders(payload)
	offset := 0
	for _, h := range headers {
		verifier := "ok"
		if !h.Valid() {
			verifier = fmt.Sprintf("0x%02x", h.Verifier)
		}
		fmt.Printf("%6d  %6d  %-8s  %d (%s)\n", offset, h.Length, verifier, int32(h.Kind), h.Kind)
		offset += int(h.Length)
	}
	if scanErr != nil {
		fmt.Printf("  scan stopped at offset %d: %v\n", offset, scanErr)
	} else if offset < len(payload) {
		fmt.Printf("  %d trailing bytes\n", len(payload)-offset)
	}
	fmt.Println()

	// Decoded packets, inbound only: outbound kinds overlap inbound numbers
	if dg.Direction == "tracker->server" {
		fmt.Println("Packets:")
		res := protocol.NewParser().Parse(payload, nil)
		for _, p := range res.Packets {
			fmt.Printf("  %s\n", p)
		}
		for _, ferr := range res.DecodeErrors {
			fmt.Printf("  ❌ %v\n", ferr)
		}
		if res.Unknown > 0 || res.BadVerifier > 0 {
			fmt.Printf("  skipped: %d unknown kind, %d bad verifier\n", res.Unknown, res.BadVerifier)
		}
		fmt.Println()
	}

	fmt.Println("Hex Dump (16 bytes/line):")
	hexDump(payload)
	fmt.Println()
}

func hexDump(payload []byte) {
	for i := 0; i < len(payload); i += 16 {
		fmt.Printf("%04x  ", i)

		for j := 0; j < 16; j++ {
			if i+j < len(payload) {
				fmt.Printf("%02x ", payload[i+j])
			} else {
				fmt.Print("   ")
			}
			if j == 7 {
				fmt.Print(" ")
			}
		}

		fmt.Print(" |")
		for j := 0; j < 16 && i+j < len(payload); j++ {
			b := payload[i+j]
			if b >= 32 && b <= 126 {
				fmt.Printf("%c", b)
			} else {
				fmt.Print(".")
			}
		}
		fmt.Println("|")
	}
}
