package stringutils

import "strings"

// IndentString prefixes each line of the string with indent.
func IndentString(str, indent string) string {
	spl := strings.SplitAfter(str, "\n")
	return strings.Join(append([]string{""}, spl...), indent)
}

// FirstLine returns str up to the first newline character.
func FirstLine(str string) string {
	if idx := strings.IndexByte(str, '\n'); idx >= 0 {
		return str[:idx]
	}

	return str
}
