package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/origctl/internal/protocol"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a captured SPP byte stream",
	Long: `Decode a captured byte stream into frames and reports.

Each input line is either plain hex (spaces allowed) or a debug log line
carrying a "hex" field, as written with ORIGCTL_LOG_LEVEL=debug. All lines
are fed to one stream decoder, so frames may span lines. Reads stdin when no
file is given.`,
	Example: `  # Decode the frames logged by a debug session
  ORIGCTL_LOG_LEVEL=debug origctl run --device AA:BB:CC:DD:EE:FF 2> session.log
  origctl decode session.log

  # Decode a hand-typed battery report
  echo "4e 06 00 00 05 00 50 4b 64" | origctl decode`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	in := io.Reader(os.Stdin)
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open capture: %w", err)
		}
		defer f.Close()
		in = f
	}

	stats, err := decodeCapture(in, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d frame(s), %d byte(s) discarded, %d oversized header(s)\n",
		stats.Frames, stats.Discarded, stats.Oversized)
	return nil
}

var hexField = regexp.MustCompile(`"hex":\s*"([0-9a-fA-F]*)`)

// extractHex returns the bytes carried by one capture line
func extractHex(line string) ([]byte, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}
	if m := hexField.FindStringSubmatch(line); m != nil {
		return hex.DecodeString(m[1])
	}
	if strings.Contains(line, "{") {
		// A log line without frame bytes
		return nil, nil
	}
	return hex.DecodeString(strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(line))
}

// decodeCapture feeds every line of r through one decoder and prints each frame
func decodeCapture(r io.Reader, w io.Writer) (protocol.DecoderStats, error) {
	decoder := protocol.NewDecoder()
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		data, err := extractHex(scanner.Text())
		if err != nil {
			return decoder.Stats(), fmt.Errorf("line %d: %w", lineNum, err)
		}
		for _, frame := range decoder.Feed(data) {
			fmt.Fprintf(w, "%-14s % X\n", frame.Opcode, frame.Raw)
			fmt.Fprintf(w, "  %s\n", protocol.ParseReport(frame))
		}
	}
	if err := scanner.Err(); err != nil {
		return decoder.Stats(), fmt.Errorf("failed to read capture: %w", err)
	}
	return decoder.Stats(), nil
}
