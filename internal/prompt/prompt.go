// Package prompt supplies the instruction text sent with every image.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed default.md
var defaultInstructions string

func Default() string {
	return defaultInstructions
}

// Load returns the contents of path verbatim, or the embedded default when path is empty. A file holding
// only whitespace is an error.
func Load(path string) (string, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read instructions: %w", err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("instructions file %s is empty", path)
	}
	return string(data), nil
}
