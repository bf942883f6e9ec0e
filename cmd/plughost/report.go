package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/plughost/internal/domain/plugin"
)

// printCheckReport writes a summary of one check followed by every record
// the manager knows about.
func printCheckReport(w io.Writer, result *plugin.CheckResult, m *plugin.Manager) {
	_, _ = fmt.Fprintln(w, titleStyle.Render("Plugins in "+result.Dir))
	_, _ = fmt.Fprintf(w, "%s\n\n", mutedStyle.Render(fmt.Sprintf(
		"check %s: %d detected, %d loaded, %d failed",
		result.ID, len(result.Detected), len(result.Loaded), len(result.Failed),
	)))

	records := m.Detected()
	if len(records) == 0 {
		_, _ = fmt.Fprintln(w, "No plugins found.")
		return
	}
	for _, d := range records {
		printRecord(w, d)
	}

	if loaded := m.Available(); len(loaded) > 0 {
		ids := make([]string, 0, len(loaded))
		for _, p := range loaded {
			ids = append(ids, p.Detected().Info.ID)
		}
		_, _ = fmt.Fprintf(w, "\n%s %s\n", keyStyle.Render("Init order"), strings.Join(ids, " → "))
	}
}

func printRecord(w io.Writer, d *plugin.Detected) {
	source := d.File
	if d.Registered() {
		source = "registered"
	}
	_, _ = fmt.Fprintf(w, "%s %s %s\n", statusLabel(d.Status()), d.String(), mutedStyle.Render(source))

	if d.Status() == plugin.StatusFailed {
		_, _ = fmt.Fprintf(w, "           %s\n", errorStyle.Render(string(d.Cause())+": "+d.Message()))
	}
}

// printInformation writes a descriptor in key/value form.
func printInformation(w io.Writer, path string, info *plugin.Information, hasLogo bool, logoSize string) {
	_, _ = fmt.Fprintln(w, titleStyle.Render(path))

	row := func(key, value string) {
		if value == "" {
			return
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", keyStyle.Render(key), value)
	}

	row("ID", info.ID)
	if info.Version != nil {
		row("Version", info.Version.String())
	}
	row("Type", info.Type)
	row("Title", info.Title)
	row("Description", info.Description)
	row("Main", info.MainType)
	if info.Strategy != nil {
		row("Strategy", info.Strategy.String())
	}
	for n, lib := range info.Libraries {
		key := ""
		if n == 0 {
			key = "Libraries"
		}
		_, _ = fmt.Fprintf(w, "%s %s %s\n", keyStyle.Render(key), lib.Label(), mutedStyle.Render(lib.File))
	}
	if hasLogo {
		row("Logo", logoSize)
	}
}
