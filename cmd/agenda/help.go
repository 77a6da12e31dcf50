package main

import (
	"text/template"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	helpHeadingStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	helpCommandStyle = lipgloss.NewStyle().Foreground(colorPrimaryLight)
)

// styleIfTTY returns a template func applying style on terminals only.
func styleIfTTY(style lipgloss.Style) func(string) string {
	return func(s string) string {
		if !isTTY() {
			return s
		}
		return style.Render(s)
	}
}

var helpFuncs = template.FuncMap{
	"heading": styleIfTTY(helpHeadingStyle),
	"command": styleIfTTY(helpCommandStyle),
	"dim":     styleIfTTY(mutedStyle),
}

const helpTemplate = `{{with .Long}}{{. | trimTrailingWhitespaces}}

{{end}}{{if or .Runnable .HasSubCommands}}{{heading "Usage:"}}
  {{command .UseLine}}{{if .HasAvailableSubCommands}} {{dim "<command>"}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}{{heading "Commands:"}}
{{range .Commands}}{{if .IsAvailableCommand}}  {{command (rpad .Name .NamePadding)}} {{.Short}}
{{end}}{{end}}
{{end}}{{if .HasAvailableLocalFlags}}{{heading "Flags:"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}{{heading "Global Flags:"}}
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableSubCommands}}{{dim "Run"}} {{command (printf "%s <command> --help" .CommandPath)}} {{dim "for details on a command."}}
{{end}}`

// initHelp installs the styled help template on root and every subcommand.
func initHelp(root *cobra.Command) {
	for name, fn := range helpFuncs {
		cobra.AddTemplateFunc(name, fn)
	}
	var walk func(*cobra.Command)
	walk = func(c *cobra.Command) {
		c.SetHelpTemplate(helpTemplate)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(root)
}
