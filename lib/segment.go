package lib

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Segment represents a control segment exchanged over the datagram channel.
// The wire representation is a genuine 20-byte TCP header; only the SYN, ACK
// and FIN bits are meaningful and segments never carry a payload.
type Segment struct {
	SourcePort        uint16
	DestinationPort   uint16
	SequenceNumber    uint32
	AcknowledgmentNum uint32 // meaningful only when ACKFlag is set
	Flags             uint8
	WindowSize        uint16
}

// validateFlags rejects every flag combination the protocol never produces.
func validateFlags(flags uint8) error {
	if flags&^(SYNFlag|ACKFlag|FINFlag) != 0 {
		return &MalformedSegmentError{Reason: fmt.Sprintf("unrecognized flag bits 0x%02x", flags)}
	}
	if flags == 0 {
		return &MalformedSegmentError{Reason: "no control flag set"}
	}
	if flags&SYNFlag != 0 && flags&FINFlag != 0 {
		return &MalformedSegmentError{Reason: "SYN and FIN are mutually exclusive"}
	}
	return nil
}

// Marshal converts a Segment to its wire representation.
func (p *Segment) Marshal() ([]byte, error) {
	if err := validateFlags(p.Flags); err != nil {
		return nil, err
	}

	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(p.SourcePort),
		DstPort: layers.TCPPort(p.DestinationPort),
		Seq:     p.SequenceNumber,
		Ack:     p.AcknowledgmentNum,
		SYN:     p.Flags&SYNFlag != 0,
		ACK:     p.Flags&ACKFlag != 0,
		FIN:     p.Flags&FINFlag != 0,
		Window:  p.WindowSize,
	}

	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buffer, opts, tcp); err != nil {
		return nil, fmt.Errorf("segment marshal: %w", err)
	}
	return buffer.Bytes(), nil
}

// Unmarshal parses wire bytes into the Segment. Anything that is not a bare
// TCP header with a legal SYN/ACK/FIN combination fails with
// MalformedSegmentError.
func (p *Segment) Unmarshal(data []byte) error {
	packet := gopacket.NewPacket(data, layers.LayerTypeTCP, gopacket.Default)
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return &MalformedSegmentError{Reason: errLayer.Error().Error()}
	}
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return &MalformedSegmentError{Reason: "no TCP header found"}
	}
	tcp, _ := tcpLayer.(*layers.TCP)

	var flags uint8
	if tcp.SYN {
		flags |= SYNFlag
	}
	if tcp.ACK {
		flags |= ACKFlag
	}
	if tcp.FIN {
		flags |= FINFlag
	}
	if tcp.RST || tcp.PSH || tcp.URG || tcp.ECE || tcp.CWR || tcp.NS {
		return &MalformedSegmentError{Reason: "flag bits outside SYN/ACK/FIN are set"}
	}
	if err := validateFlags(flags); err != nil {
		return err
	}
	if len(tcp.Payload) > 0 {
		return &MalformedSegmentError{Reason: "control segment carries a payload"}
	}

	p.SourcePort = uint16(tcp.SrcPort)
	p.DestinationPort = uint16(tcp.DstPort)
	p.SequenceNumber = tcp.Seq
	p.AcknowledgmentNum = tcp.Ack
	p.Flags = flags
	p.WindowSize = tcp.Window
	return nil
}

// FlagsString returns a human-readable rendering of a flag set, e.g. "SYN|ACK".
func FlagsString(flags uint8) string {
	if flags == 0 {
		return "none"
	}
	s := ""
	if flags&SYNFlag != 0 {
		s += "SYN|"
	}
	if flags&FINFlag != 0 {
		s += "FIN|"
	}
	if flags&ACKFlag != 0 {
		s += "ACK|"
	}
	if s == "" {
		return fmt.Sprintf("0x%02x", flags)
	}
	return s[:len(s)-1] // trim trailing |
}

func (p *Segment) String() string {
	return fmt.Sprintf("{%s seq=%d ack=%d %d->%d}", FlagsString(p.Flags), p.SequenceNumber, p.AcknowledgmentNum, p.SourcePort, p.DestinationPort)
}
