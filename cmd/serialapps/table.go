package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"serialapps/internal/registry"
)

// renderCodeTable lists every dispatch code with the command it runs.
func renderCodeTable(entries []registry.Entry) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Code", "Application", "Command"})

	title := cases.Title(language.Und)
	for _, entry := range entries {
		tw.AppendRow(table.Row{strconv.Itoa(entry.Code), displayName(title, entry.Application), entry.Application})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// displayName turns a command such as "gnome-terminal" into "Gnome Terminal".
func displayName(caser cases.Caser, command string) string {
	spaced := []rune(command)
	for i, r := range spaced {
		if r == '-' || r == '_' {
			spaced[i] = ' '
		}
	}
	return caser.String(string(spaced))
}
