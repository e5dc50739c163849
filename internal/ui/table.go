package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jhon1466/PeerDrop/internal/utils"
)

// FileTableItem is one row of the file table.
type FileTableItem struct {
	Name string
	Size int64
	Type string
}

// FileTableView renders files with lipgloss/table.
func FileTableView(items []FileTableItem) string {
	if len(items) == 0 {
		return MutedStyle.Render("No files")
	}

	rows := make([][]string, 0, len(items))
	for i, item := range items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			utils.TruncateString(item.Name, 50),
			utils.FormatSize(item.Size),
			utils.TruncateString(item.Type, 24),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Name", "Size", "Type").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderFileTable(items []FileTableItem) {
	fmt.Println(FileTableView(items))
}

// RoomInfoView is the box a host shows while waiting for the joiner.
func RoomInfoView(roomID, serverURL string) string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:  %s\n%s Server:   %s\n\n%s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(roomID),
		IconServer, MutedStyle.Render(serverURL),
		MutedStyle.Render("peerdrop receive "+roomID),
	)
	return RoomBoxStyle.Render(content)
}

func RenderRoomInfo(roomID, serverURL string) {
	fmt.Println(RoomInfoView(roomID, serverURL))
}

// ServerInfoView is shown by `serve` once the broker listens.
func ServerInfoView(addr string, mdns bool) string {
	lines := []string{
		TitleStyle.Render(IconServer + " Signaling broker running"),
		"",
		fmt.Sprintf("WebSocket:  %s", BoldStyle.Foreground(Primary).Render("ws://"+addr+"/ws")),
		fmt.Sprintf("Health:     %s", MutedStyle.Render("http://"+addr+"/health")),
	}
	if mdns {
		lines = append(lines, fmt.Sprintf("mDNS:       %s", MutedStyle.Render("announced on the local network")))
	}
	return ServerBoxStyle.Render(strings.Join(lines, "\n"))
}

type TransferSummary struct {
	Status   string
	File     string
	Size     int64
	Duration string
	Speed    string
	SavedTo  string
}

// TransferSummaryView renders the end-of-transfer stats with go-pretty.
func TransferSummaryView(s TransferSummary) string {
	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(prettytable.Row{"Metric", "Value"})
	t.AppendRows([]prettytable.Row{
		{"Status", s.Status},
		{"File", s.File},
		{"Size", utils.FormatSize(s.Size)},
		{"Duration", s.Duration},
		{"Avg Speed", s.Speed},
	})
	if s.SavedTo != "" {
		t.AppendRow(prettytable.Row{"Saved To", s.SavedTo})
	}
	return t.Render()
}

func RenderTransferSummary(s TransferSummary) {
	fmt.Println(TransferSummaryView(s))
}
