package forms

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Position-marker tokens recognized in engine results. A marker equal to
// terminalToken (or containing chainPrefix's bare "eof" stem) ends the form;
// a marker containing chainPrefix additionally names the successor bot.
const (
	terminalToken = "endOfForm"
	chainPrefix   = "eof__"
)

// ErrFormNotFound is returned when no definition exists for a form ID.
var ErrFormNotFound = errors.New("form not found")

// IsTerminal reports whether a position marker ends the form.
func IsTerminal(marker string) bool {
	return marker == terminalToken || strings.Contains(marker, "eof")
}

// HasChain reports whether a position marker chains into a successor bot.
func HasChain(marker string) bool {
	return strings.Contains(marker, chainPrefix)
}

// NextBotID extracts the successor bot identifier embedded in a chain
// marker: the segment following "eof__", cut at the first path or whitespace
// separator. Returns "" when the marker carries no chain.
func NextBotID(marker string) string {
	i := strings.Index(marker, chainPrefix)
	if i < 0 {
		return ""
	}
	id := marker[i+len(chainPrefix):]
	if j := strings.IndexAny(id, "/ \t["); j >= 0 {
		id = id[:j]
	}
	return id
}

// FormPath resolves a form ID to its definition file under dir. Definitions
// are stored as <formID>.xml; a missing file means the form cannot be served
// and the turn must be dropped.
func FormPath(dir, formID string) (string, error) {
	if strings.TrimSpace(formID) == "" {
		return "", ErrFormNotFound
	}
	p := filepath.Join(dir, formID+".xml")
	if _, err := os.Stat(p); err != nil {
		return "", ErrFormNotFound
	}
	return p, nil
}
