// Package protocol implements the OriG earbud control protocol.
//
// This package handles framing, parsing and construction of the binary
// messages exchanged with OriG-family earbuds (YUANDAO, NiceHCK) over an
// RFCOMM/SPP byte stream.
//
// # Frame Format
//
// Every message in either direction is one frame:
//
//	[0]     0x4E           Marker byte (FrameMarker)
//	[1-2]   length         3 + payload length (little-endian uint16)
//	[3]     0x00           Reserved
//	[4-5]   opcode         Operation (little-endian uint16)
//	[6+]    payload        Opcode-specific bytes
//
// The total frame size is length + 3.
//
// # Opcodes
//
// Opcodes come in set/query pairs per feature domain. The high byte is 0x02
// for a set and 0x01 for a query; the device answers a query with a frame
// carrying the query opcode and a single status byte:
//
//	ANC              0x0201 / 0x0101
//	EQ               0x0207 / 0x0107
//	Game mode        0x0208 / 0x0108
//	Low latency      0x0206 / 0x0106
//	Dual connection  0x0205 / 0x0105
//	In-ear detection 0x0209 / 0x0109
//	Wind suppression 0x02E1 / 0x01E1
//
// Battery (0x0005) is queried with an empty frame and reported with three
// level bytes (left, right, case).
//
// # Usage Example - Streaming
//
//	dec := protocol.NewDecoder()
//	for {
//	    n, err := conn.Read(buf)
//	    if err != nil {
//	        return err
//	    }
//	    for _, frame := range dec.Feed(buf[:n]) {
//	        switch r := protocol.ParseReport(frame).(type) {
//	        case *protocol.BatteryReport:
//	            fmt.Println(r)
//	        }
//	    }
//	}
//
// # Usage Example - Construction
//
//	conn.Write(protocol.AncSet(protocol.AncNormal))
//	conn.Write(protocol.Query(protocol.OpBattery))
//
// # Error Handling
//
// Decoding never fails hard. Bytes that do not start a plausible frame are
// discarded one at a time until the next marker, and frames too short for
// their opcode parse as *UnknownReport.
//
// # Thread Safety
//
// Parsing and construction functions are stateless and safe for concurrent
// use. A Decoder holds buffered stream state and must be owned by a single
// reader goroutine.
package protocol
