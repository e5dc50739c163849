package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	Primary    = lipgloss.Color("#34D399") // Mint, the PeerDrop accent
	Secondary  = lipgloss.Color("#818CF8") // Indigo
	Success    = lipgloss.Color("#10B981")
	Warning    = lipgloss.Color("#F59E0B")
	Error      = lipgloss.Color("#EF4444")
	Muted      = lipgloss.Color("#6B7280")

	ProgressStart = "#34D399"
	ProgressEnd   = "#818CF8"
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(Success)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(Error)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	// RoomBoxStyle frames the room id a host shares with the receiver.
	RoomBoxStyle   = boxStyle(lipgloss.DoubleBorder(), Success)
	ServerBoxStyle = boxStyle(lipgloss.RoundedBorder(), Secondary)

	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).Align(lipgloss.Center)
	TableRowStyle    = cellStyle(lipgloss.Color("255"))
	TableRowAltStyle = cellStyle(lipgloss.Color("245"))
)

func boxStyle(b lipgloss.Border, c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(b).BorderForeground(c).Padding(1, 2)
}

func cellStyle(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Padding(0, 1).Foreground(c)
}

const (
	IconSend    = "📤"
	IconReceive = "📥"
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconServer  = "🛰️"
	IconCopy    = "📋"
)

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintSuccess(msg string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintSuccessf(format string, args ...any) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

func PrintInfo(msg string) {
	fmt.Printf("%s %s\n", IconInfo, msg)
}

