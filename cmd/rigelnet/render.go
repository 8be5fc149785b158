package main

import (
	"fmt"
	"rigelnet/remote"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func statusColor(s remote.Status) lipgloss.Color {
	switch s {
	case remote.StatusConnected:
		return lipgloss.Color("2") // green
	case remote.StatusAwaitingHandshakeAck:
		return lipgloss.Color("3") // yellow
	default:
		return lipgloss.Color("8") // grey
	}
}

// renderPeers renders the server's slots as a table, one row per slot.
func renderPeers(peers []*remote.Descriptor) string {
	if len(peers) == 0 {
		return dimStyle.Render("  No slots.")
	}

	const (
		colSlot    = 6
		colAddr    = 24
		colStatus  = 24
		colLatency = 12
		colPending = 9
	)
	header := strings.Join([]string{
		headerCellStyle.Width(colSlot).Render("SLOT"),
		headerCellStyle.Width(colAddr).Render("PEER"),
		headerCellStyle.Width(colStatus).Render("STATUS"),
		headerCellStyle.Width(colLatency).Render("LATENCY"),
		headerCellStyle.Width(colPending).Render("PENDING"),
	}, "")

	rows := []string{header}
	for _, d := range peers {
		addr, latency := "-", "-"
		if d.Status() != remote.StatusDisconnected {
			addr = d.Address()
			latency = d.Latency().String()
		}
		statusCell := lipgloss.NewStyle().
			Width(colStatus).
			Foreground(statusColor(d.Status())).
			Render(d.Status().String())
		rows = append(rows, strings.Join([]string{
			rowStyle.Width(colSlot).Render(fmt.Sprint(d.Slot())),
			rowStyle.Width(colAddr).Render(addr),
			statusCell,
			rowStyle.Width(colLatency).Render(latency),
			rowStyle.Width(colPending).Render(fmt.Sprint(d.Pending().Len())),
		}, ""))
	}
	return strings.Join(rows, "\n")
}
