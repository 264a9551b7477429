package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	nm "github.com/netbind/networkmanager"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func printHeader(title string) {
	fmt.Println(headerStyle.Render(title))
}

func printField(label, value string) {
	fmt.Printf("%s %s\n", labelStyle.Render(label), value)
}

func onOff(enabled bool) string {
	if enabled {
		return okStyle.Render("on")
	}
	return badStyle.Render("off")
}

func renderNmState(state nm.NmState) string {
	switch state {
	case nm.NmStateConnectedGlobal, nm.NmStateConnectedSite, nm.NmStateConnectedLocal:
		return okStyle.Render(state.String())
	case nm.NmStateDisconnected, nm.NmStateAsleep:
		return badStyle.Render(state.String())
	default:
		return state.String()
	}
}

func renderDeviceState(state nm.DeviceState) string {
	switch state {
	case nm.DeviceStateActivated:
		return okStyle.Render(state.String())
	case nm.DeviceStateFailed:
		return badStyle.Render(state.String())
	default:
		return state.String()
	}
}

func renderStrength(strength uint8) string {
	bars := int(strength) / 25
	out := ""
	for i := 0; i < 4; i++ {
		if i <= bars {
			out += "▂"
		} else {
			out += dimStyle.Render("▂")
		}
	}
	return fmt.Sprintf("%s %3d%%", out, strength)
}
