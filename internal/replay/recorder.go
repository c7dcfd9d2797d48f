package replay

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// snapLen is large enough for any frame the tracker protocol can carry.
const snapLen = 65536

// Recorder writes datagrams into a pcap stream as Ethernet/IP/UDP packets so
// live traffic can be replayed later or opened in Wireshark.
type Recorder struct {
	mu  sync.Mutex
	w   *pcapgo.Writer
	buf gopacket.SerializeBuffer
}

// NewRecorder writes a pcap file header to w and returns a Recorder.
func NewRecorder(w io.Writer) (*Recorder, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Recorder{w: pw, buf: gopacket.NewSerializeBuffer()}, nil
}

// Record appends one datagram. Safe for concurrent use.
func (r *Recorder) Record(dg Datagram) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	eth := &layers.Ethernet{
		SrcMAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(dg.Src.Port()),
		DstPort: layers.UDPPort(dg.Dst.Port()),
	}

	var network gopacket.SerializableLayer
	switch {
	case dg.Src.Addr().Is4() && dg.Dst.Addr().Is4():
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    dg.Src.Addr().AsSlice(),
			DstIP:    dg.Dst.Addr().AsSlice(),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return err
		}
		network = ip
	default:
		src, dst := dg.Src.Addr().As16(), dg.Dst.Addr().As16()
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocolUDP,
			SrcIP:      src[:],
			DstIP:      dst[:],
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return err
		}
		network = ip
	}

	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(r.buf, opts, eth, network, udp, gopacket.Payload(dg.Payload)); err != nil {
		return fmt.Errorf("failed to serialize datagram: %w", err)
	}

	data := r.buf.Bytes()
	ci := gopacket.CaptureInfo{
		Timestamp:     dg.Time,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := r.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write pcap record: %w", err)
	}
	return nil
}
