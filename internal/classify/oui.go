package classify

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

//go:embed oui_data.txt
var ouiRawData []byte

// OUITable provides MAC address prefix to manufacturer lookup. It ships with
// an embedded baseline table; LoadFile overlays site-local entries on top.
// Lookup is safe for concurrent use once the table is built.
type OUITable struct {
	once    sync.Once
	table   map[string]string
	overlay map[string]string
}

// NewOUITable creates an OUI lookup table backed by the embedded data.
func NewOUITable() *OUITable {
	return &OUITable{}
}

// LoadFile overlays entries from a tab-separated prefix/vendor file on top
// of the embedded table. Entries in the file win over embedded ones. Must be
// called before the first Lookup.
func (o *OUITable) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open OUI overlay: %w", err)
	}
	defer f.Close()

	o.overlay = parseOUI(f)
	return nil
}

// Lookup returns the manufacturer for a given MAC address. The MAC can be in
// any common format (AA:BB:CC:DD:EE:FF, AA-BB-CC-DD-EE-FF, AABBCCDDEEFF).
// Returns empty string if not found.
func (o *OUITable) Lookup(mac string) string {
	o.once.Do(o.build)

	prefix := normalizeMAC(mac)
	if prefix == "" {
		return ""
	}
	return o.table[prefix]
}

// build merges the embedded data and any overlay into the lookup table.
func (o *OUITable) build() {
	o.table = parseOUI(bytes.NewReader(ouiRawData))
	for prefix, vendor := range o.overlay {
		o.table[prefix] = vendor
	}
}

// parseOUI reads tab-separated "prefix<TAB>vendor" lines.
func parseOUI(r io.Reader) map[string]string {
	table := make(map[string]string, 256)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		prefix := strings.ToUpper(strings.TrimSpace(parts[0]))
		vendor := strings.TrimSpace(parts[1])
		if prefix != "" && vendor != "" {
			table[prefix] = vendor
		}
	}
	return table
}

// normalizeMAC extracts the first 3 octets from a MAC address and returns
// them in uppercase colon-separated format (e.g., "AA:BB:CC").
func normalizeMAC(mac string) string {
	// Remove separators to get raw hex.
	mac = strings.ToUpper(mac)
	mac = strings.ReplaceAll(mac, ":", "")
	mac = strings.ReplaceAll(mac, "-", "")
	mac = strings.ReplaceAll(mac, ".", "")

	if len(mac) < 6 {
		return ""
	}

	// First 3 octets as colon-separated uppercase.
	return mac[0:2] + ":" + mac[2:4] + ":" + mac[4:6]
}
