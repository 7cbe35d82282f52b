package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/banner"
)

// StorageTarget describes where the configured Fact Store lives, without credentials.
func (c *Config) StorageTarget() string {
	switch c.Storage.Driver {
	case "postgres":
		return "postgres"
	case "memory":
		return "memory"
	default:
		return c.Storage.SurrealDB.Address
	}
}

// PrintBanner writes the startup banner to w and logs the same facts.
func PrintBanner(w io.Writer, config *Config, logger *Logger) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	hr := lineColor + strings.Repeat("═", 60) + banner.ColorReset

	fmt.Fprintf(w, "\n%s\n\n", hr)
	fmt.Fprintf(w, "%s  KEYMETRICS  %s\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "%s  Financial statement facts and derived valuation ratios%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "\n%s\n\n", hr)

	kvLines := [][2]string{
		{"Version", Version},
		{"Build", Build},
		{"Commit", GitCommit},
		{"Environment", config.Environment},
		{"Storage", config.Storage.Driver},
		{"Target", config.StorageTarget()},
		{"Upstream", config.Clients.FMP.BaseURL},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-14s %s%s\n", textColor, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s\n\n", hr)

	logger.Info().
		Str("version", Version).
		Str("environment", config.Environment).
		Str("storage_driver", config.Storage.Driver).
		Msg("Application started")
}
