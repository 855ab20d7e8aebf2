/*
	This file provides version information for the datastore.
*/

package datastore

import (
	"fmt"
	"strings"

	"github.com/go2scope/g2s/storage"
)

const (
	Version = "0.3"
)

// Versions returns a chart of version identifiers for the datastore and the storage
// engines compiled into this executable.
func Versions() string {
	var text strings.Builder
	text.WriteString("\nCompile-time version information for this g2s executable:\n\n")
	writeLine := func(name, version string) {
		fmt.Fprintf(&text, "%-15s   %s\n", name, version)
	}
	writeLine("Name", "Version")
	writeLine("g2s datastore", Version)
	for _, e := range storage.Engines() {
		writeLine(e.GetName(), e.GetSemVer().String())
	}
	return text.String()
}
