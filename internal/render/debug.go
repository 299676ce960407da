package render

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ashureev/agent-studio/internal/chat"
)

var entryColors = map[chat.EntryType]lipgloss.Color{
	chat.EntryInfo:       colorMuted,
	chat.EntryThought:    colorTitle,
	chat.EntryToolCall:   colorAccent,
	chat.EntryToolResult: colorCode,
	chat.EntryError:      lipgloss.Color("#e06c75"),
	chat.EntrySuccess:    colorCode,
}

// DebugLog renders debug entries as a table of time, type, content and
// metadata. Columns take their natural width.
func (r *Renderer) DebugLog(entries []chat.DebugEntry) string {
	if len(entries) == 0 {
		return r.styles.CodeLanguage.Render("no debug entries")
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			e.Timestamp.Format("15:04:05.000"),
			string(e.Type),
			e.Content,
			metadataString(e.Metadata),
		}
	}

	cell := lipgloss.NewStyle().Padding(0, 1)
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.styles.TableBorder).
		Headers("TIME", "TYPE", "CONTENT", "METADATA").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.styles.TableHeader
			}
			if col == 1 {
				return cell.Foreground(entryColors[entries[row].Type])
			}
			return cell
		})
	return tbl.String()
}

// metadataString renders metadata as key=value pairs in key order.
func metadataString(md map[string]any) string {
	if len(md) == 0 {
		return ""
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		v, err := json.Marshal(md[k])
		if err != nil {
			parts[i] = k + "=?"
			continue
		}
		parts[i] = k + "=" + string(v)
	}
	return strings.Join(parts, " ")
}
