package cli

import (
	"github.com/semmy-space/credstore/internal/credstore"
	"github.com/semmy-space/credstore/internal/output"
)

var listBackends = credstore.Backends

// BackendsCmd lists storage backends and whether they work on this host
type BackendsCmd struct{}

// Run executes the backends command
func (cmd *BackendsCmd) Run(fp *FormatterProvider) error {
	type backendRow struct {
		Name      string `json:"name"`
		Available string `json:"available"`
		Detail    string `json:"detail"`
	}

	infos := listBackends()
	if fp.Mode == "json" {
		return fp.Formatter.PrintList(infos, nil)
	}

	rows := make([]backendRow, len(infos))
	for i, b := range infos {
		rows[i] = backendRow{Name: b.Name, Available: formatBool(b.Available), Detail: b.Detail}
	}
	cols := []output.Column{
		{Name: "BACKEND", Key: "Name"},
		{Name: "AVAILABLE", Key: "Available"},
		{Name: "DETAIL", Key: "Detail", Width: 60},
	}
	return fp.Formatter.PrintList(rows, cols)
}

func formatBool(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
