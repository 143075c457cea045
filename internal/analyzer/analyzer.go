// Package analyzer extracts rough structure from C# source text. It is a
// line heuristic, not a parser.
package analyzer

// file: internal/analyzer/analyzer.go

import "strings"

// Findings lists declaration lines found in one file, trimmed, in source order.
type Findings struct {
	Classes    []string `json:"classes"`
	Methods    []string `json:"methods"`
	Properties []string `json:"properties"`
}

// Analyzer turns source text into findings.
type Analyzer interface {
	Analyze(text string) Findings
}

// LineHeuristic classifies each non-empty line by prefix and substring:
// lines starting with "class " are classes; lines mentioning "void ",
// "public " or "private " are methods when they contain "(" and properties
// when they contain "{ get; set; }".
type LineHeuristic struct{}

// Analyze implements Analyzer.
func (LineHeuristic) Analyze(text string) Findings {
	f := Findings{Classes: []string{}, Methods: []string{}, Properties: []string{}}
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "class "):
			f.Classes = append(f.Classes, trimmed)
		case strings.Contains(trimmed, "void "),
			strings.Contains(trimmed, "public "),
			strings.Contains(trimmed, "private "):
			if strings.Contains(trimmed, "(") {
				f.Methods = append(f.Methods, trimmed)
			} else if strings.Contains(trimmed, "{ get; set; }") {
				f.Properties = append(f.Properties, trimmed)
			}
		}
	}
	return f
}
