// Package denylist loads the two flat rule files used for client
// classification: MAC address prefixes and manufacturer name substrings.
package denylist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Rules holds both rule sets. Rules are immutable after Load and safe for
// shared concurrent reads.
type Rules struct {
	MACPrefixes []string
	Companies   []string
}

// Load reads both rule files. Each file is plain text, one entry per line.
// Blank lines and surrounding whitespace are dropped so an empty entry can
// never match every client.
func Load(macPath, companyPath string) (*Rules, error) {
	macs, err := loadLines(macPath)
	if err != nil {
		return nil, fmt.Errorf("load MAC denylist: %w", err)
	}
	companies, err := loadLines(companyPath)
	if err != nil {
		return nil, fmt.Errorf("load company denylist: %w", err)
	}
	return &Rules{MACPrefixes: macs, Companies: companies}, nil
}

// Empty reports whether no rules are loaded at all.
func (r *Rules) Empty() bool {
	return len(r.MACPrefixes) == 0 && len(r.Companies) == 0
}

func loadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return entries, nil
}
