package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerDimStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	bannerMarkStyle    = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	bannerTitleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	bannerTaglineStyle = lipgloss.NewStyle().Foreground(colorPrimaryDark).Italic(true)
	bannerVersionStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// renderBanner draws a small calendar page with the product name.
func renderBanner() string {
	rule := bannerDimStyle.Render("┌──┬──┬──┬──┐")
	foot := bannerDimStyle.Render("└──┴──┴──┴──┘")
	bar := bannerDimStyle.Render("│")
	mark := bannerMarkStyle.Render("◆")
	title := bannerTitleStyle.Render("AGENDA")

	lines := []string{
		"  " + rule,
		"  " + bar + " " + mark + "  " + title + " " + bar,
		"  " + foot,
	}
	return strings.Join(lines, "\n")
}

func renderBannerWithTagline() string {
	tagline := bannerTaglineStyle.Render("  every session, in sync")
	ver := bannerVersionStyle.Render("  " + version)
	return strings.Join([]string{renderBanner(), tagline, ver}, "\n")
}
