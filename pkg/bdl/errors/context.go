package errors

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// ExtractContext returns the source lines around a location, marking the
// offending line with '>'. It returns "" when the file cannot be read.
func ExtractContext(location ast.Location, contextLines int) string {
	if !location.IsValid() {
		return ""
	}
	f, err := os.Open(location.File)
	if err != nil {
		return ""
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if scanner.Err() != nil || location.Line > len(lines) {
		return ""
	}

	target := location.Line - 1
	start := max(target-contextLines, 0)
	end := min(target+contextLines, len(lines)-1)
	width := len(fmt.Sprintf("%d", end+1))

	var sb strings.Builder
	for i := start; i <= end; i++ {
		marker := " "
		if i == target {
			marker = ">"
		}
		sb.WriteString(fmt.Sprintf("%s %*d | %s\n", marker, width, i+1, lines[i]))
	}
	return sb.String()
}

// AddContext fills in the Context field of every finding that has a file location.
func AddContext(el *ErrorList) {
	if el == nil {
		return
	}
	for _, e := range el.Errors {
		if e.Context == "" {
			e.Context = ExtractContext(e.Location, 2)
		}
	}
}
