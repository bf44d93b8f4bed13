package debug

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
)

const (
	startMarker = "<!-- SNAPSHOTS:START -->"
	endMarker   = "<!-- SNAPSHOTS:END -->"
)

// SnapshotTable renders the PNG files of dir as an HTML table, cols images
// per row. Image links are prefixed with linkDir.
func SnapshotTable(dir, linkDir string, cols, width int) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}
	if cols <= 0 {
		cols = 3
	}

	type item struct {
		name    string
		encoded string
	}
	var items []item
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".png") {
			continue
		}
		items = append(items, item{name: strings.TrimSuffix(name, ".png"), encoded: url.PathEscape(name)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].name < items[j].name })

	var buf bytes.Buffer
	buf.WriteString("<table>\n")
	for i := 0; i < len(items); i += cols {
		buf.WriteString("  <tr>\n")
		for c := 0; c < cols; c++ {
			if i+c >= len(items) {
				buf.WriteString("    <td></td>\n")
				continue
			}
			it := items[i+c]
			fmt.Fprintf(&buf, "    <td align=\"center\"><img src=\"%s\" width=\"%d\" /><br><sub>%s</sub></td>\n",
				path.Join(linkDir, it.encoded), width, it.name)
		}
		buf.WriteString("  </tr>\n")
	}
	buf.WriteString("</table>\n")
	return buf.String(), nil
}

// UpdateSnapshotSection replaces the text between the snapshot markers in
// file with table.
func UpdateSnapshotSection(file, table string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	content := string(data)
	start := strings.Index(content, startMarker)
	end := strings.Index(content, endMarker)
	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("markers not found in %s, ensure %s and %s exist", file, startMarker, endMarker)
	}

	var out bytes.Buffer
	out.WriteString(content[:start+len(startMarker)])
	out.WriteString("\n")
	out.WriteString(table)
	after := content[end:]
	if !strings.HasPrefix(after, "\n") && !strings.HasSuffix(table, "\n") {
		out.WriteString("\n")
	}
	out.WriteString(after)

	if err := os.WriteFile(file, out.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", file, err)
	}
	return nil
}
