// Package vocab assembles the custom vocabulary context handed to the
// correction step.
package vocab

import (
	"os"
	"strings"
)

// Separator joins the global and project-local documents.
const Separator = "\n\n"

// Assemble concatenates the global and project-local vocabulary documents,
// global first. A missing or unreadable file is absence, not an error. The
// empty string means no vocabulary exists.
func Assemble(globalPath, localPath string) string {
	var parts []string
	if doc := readDoc(globalPath); doc != "" {
		parts = append(parts, doc)
	}
	if doc := readDoc(localPath); doc != "" {
		parts = append(parts, doc)
	}
	return strings.Join(parts, Separator)
}

func readDoc(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
