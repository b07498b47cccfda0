// Package report writes the per-network and consolidated CSV evidence
// artifacts. The column set is fixed so reports from heterogeneous networks
// always align; every field is quoted.
package report

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/fleetaudit/pkg/models"
	"go.uber.org/zap"
)

// Headers is the fixed report schema, shared by per-network and
// consolidated artifacts.
func Headers() []string {
	return []string{
		"Network Name", "Network ID",
		"id", "mac", "description", "ip", "ip6", "ip6Local", "user",
		"firstSeen", "lastSeen", "manufacturer", "os",
		"recentDeviceSerial", "recentDeviceName", "recentDeviceMac",
		"ssid", "vlan", "switchport", "usage", "status", "notes",
		"smInstalled", "groupPolicy8021x", "blocked",
	}
}

// matchToRow flattens one matched client into a report row, stamped with
// its network. Missing attributes render as empty fields, never dropped
// columns.
func matchToRow(network models.Network, m models.MatchedClient) []string {
	return []string{
		network.Name,
		network.ID,
		m.ID,
		m.MAC,
		m.Description,
		m.IP,
		m.IP6,
		m.IP6Local,
		m.User,
		m.FirstSeen,
		m.LastSeen,
		m.Manufacturer,
		m.OS,
		m.RecentDeviceSerial,
		m.RecentDeviceName,
		m.RecentDeviceMAC,
		m.SSID,
		m.VLAN.String(),
		m.Switchport,
		m.UsageDisplay,
		m.Status,
		m.Notes,
		strconv.FormatBool(m.SMInstalled),
		m.GroupPolicy8021x,
		string(m.Blocked),
	}
}

// Writer produces the artifact tree for one audit run.
type Writer struct {
	logger *zap.Logger

	// now stamps the run folder; overridable in tests.
	now func() time.Time
}

// NewWriter creates a report Writer.
func NewWriter(logger *zap.Logger) *Writer {
	return &Writer{logger: logger, now: time.Now}
}

// Write lays down one artifact per network with matches under a run folder
// inside outDir, then stitches the consolidated artifact next to the
// folder, iterating networks in enumeration order regardless of how the
// scans completed. It returns the consolidated artifact path.
func (w *Writer) Write(outDir string, org models.Organization, networks []models.Network, results []models.NetworkResult) (string, error) {
	if len(networks) != len(results) {
		return "", fmt.Errorf("got %d results for %d networks", len(results), len(networks))
	}

	folder := fmt.Sprintf("%s_clients_%s",
		sanitizeName(org.Name), w.now().Format("01-02-2006"))
	runDir := filepath.Join(outDir, folder)
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}

	for i, result := range results {
		if !result.OK || len(result.Matches) == 0 {
			// No artifact: failed sites and clean sites leave no file.
			continue
		}
		path := filepath.Join(runDir, networkFileName(networks[i]))
		if err := writeNetworkArtifact(path, networks[i], result.Matches); err != nil {
			return "", fmt.Errorf("network artifact %q: %w", networks[i].Name, err)
		}
		w.logger.Info("wrote network report",
			zap.String("network", networks[i].Name),
			zap.Int("rows", len(result.Matches)),
			zap.String("path", path))
	}

	consolidated := filepath.Join(outDir, folder+".csv")
	if err := w.consolidate(consolidated, runDir, networks); err != nil {
		return "", err
	}
	return consolidated, nil
}

// consolidate concatenates every existing per-network artifact, in network
// enumeration order, under a single header.
func (w *Writer) consolidate(outPath, runDir string, networks []models.Network) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create consolidated artifact: %w", err)
	}
	defer out.Close()

	buf := bufio.NewWriter(out)
	if err := writeRow(buf, Headers()); err != nil {
		return err
	}

	rows := 0
	for _, network := range networks {
		path := filepath.Join(runDir, networkFileName(network))
		n, err := appendArtifact(buf, path)
		if errors.Is(err, os.ErrNotExist) {
			// Networks with no matches (or failed scans) have no artifact.
			continue
		}
		if err != nil {
			return fmt.Errorf("consolidate %q: %w", network.Name, err)
		}
		rows += n
	}

	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush consolidated artifact: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync consolidated artifact: %w", err)
	}
	w.logger.Info("wrote consolidated report", zap.Int("rows", rows), zap.String("path", outPath))
	return nil
}

// writeNetworkArtifact writes header plus one row per match. Artifacts are
// only created when at least one match exists; callers enforce that.
func writeNetworkArtifact(path string, network models.Network, matches []models.MatchedClient) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	if err := writeRow(buf, Headers()); err != nil {
		return err
	}
	for _, m := range matches {
		if err := writeRow(buf, matchToRow(network, m)); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// appendArtifact copies the data rows (not the header) of a per-network
// artifact into the consolidated writer, returning the row count.
func appendArtifact(buf *bufio.Writer, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("read header: %w", err)
	}

	rows := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("read row: %w", err)
		}
		if err := writeRow(buf, record); err != nil {
			return rows, err
		}
		rows++
	}
	return rows, nil
}

// writeRow emits one CSV row with every field quoted.
func writeRow(w *bufio.Writer, row []string) error {
	for i, field := range row {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// networkFileName derives the per-network artifact name from the network
// name, with characters that break paths removed.
func networkFileName(network models.Network) string {
	return sanitizeName(network.Name) + ".csv"
}

func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, string(os.PathSeparator), "-")
	return name
}
