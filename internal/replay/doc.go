// Package replay reads and writes packet captures of tracker traffic.
//
// ReadFile pulls the UDP datagrams out of a pcap or pcapng capture, such as
// one taken with tcpdump on the server host, so they can be run through the
// protocol parser offline. Recorder does the reverse and writes live
// datagrams into a pcap file that ReadFile and Wireshark can open.
//
// Analyzer combines the two halves with the parser: it splits a capture into
// inbound and outbound traffic by server port and tallies frames and packets
// by outcome and kind.
//
// ReadFile and Recorder use the pure-Go pcapgo reader and writer, so no libpcap is needed.
package replay
