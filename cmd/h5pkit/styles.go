// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Adaptive colors keep output readable on light and dark terminals.
var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#A78BFA"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#9CA3AF"}
	colorOK      = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	colorBad     = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	colorCaution = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	colorName    = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
)

var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	SubtitleStyle = lipgloss.NewStyle().Foreground(colorDim)
	SuccessStyle  = lipgloss.NewStyle().Foreground(colorOK)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorBad)
	WarningStyle  = lipgloss.NewStyle().Foreground(colorCaution)
	// CmdStyle highlights library ubernames, content ids and suggested commands.
	CmdStyle = lipgloss.NewStyle().Foreground(colorName)

	// Status markers prefixed to result lines: installed or updated,
	// kept or skipped, failed.
	successIcon = SuccessStyle.Render("✓")
	skipIcon    = WarningStyle.Render("•")
	errorIcon   = ErrorStyle.Render("✗")
)
