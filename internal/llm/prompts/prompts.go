package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

// maxFieldRunes caps problem text and rubric length inside a prompt.
const maxFieldRunes = 10000

// rubricPoints is the total a generated rubric is written against.
const rubricPoints = 100

var markerRegex = regexp.MustCompile(`(?i)</?\s*(problem|rubric|system-instructions)\b[^>]*>`)

// Variant represents a grading prompt variant.
type Variant string

const (
	// Strict only credits written, correct steps.
	Strict Variant = "strict"
	// Standard is the default grading variant.
	Standard Variant = "standard"
	// Lenient gives generous partial credit.
	Lenient Variant = "lenient"
)

var variants = []Variant{Strict, Standard, Lenient}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if Variant(v) == known {
			return true
		}
	}
	return false
}

// GradeData holds template data for the grading user prompt.
type GradeData struct {
	ProblemText string
	Rubric      string
}

// RubricData holds template data for the rubric prompts.
type RubricData struct {
	ProblemText string
	Points      int
}

// Set is a parsed collection of prompt templates. It is read-only after Load
// and safe for concurrent use.
type Set struct {
	gradeSystem  map[Variant]string
	gradeUser    *template.Template
	rubricSystem *template.Template
	rubricUser   *template.Template
}

// Default loads the templates compiled into the binary.
func Default() (*Set, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load parses prompt templates from fsys. The file system must contain
// grade_<variant>.txt for every variant plus grade_user.txt,
// rubric_system.txt and rubric_user.txt.
func Load(fsys fs.FS) (*Set, error) {
	s := &Set{gradeSystem: make(map[Variant]string, len(variants))}

	for _, v := range variants {
		name := "grade_" + string(v) + ".txt"
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", name, err)
		}
		s.gradeSystem[v] = string(content)
	}

	var err error
	if s.gradeUser, err = parse(fsys, "grade_user.txt"); err != nil {
		return nil, err
	}
	if s.rubricSystem, err = parse(fsys, "rubric_system.txt"); err != nil {
		return nil, err
	}
	if s.rubricUser, err = parse(fsys, "rubric_user.txt"); err != nil {
		return nil, err
	}
	return s, nil
}

func parse(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", name, err)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

// GradeSystem returns the grading system prompt for variant.
func (s *Set) GradeSystem(variant Variant) (string, error) {
	p, ok := s.gradeSystem[variant]
	if !ok {
		return "", fmt.Errorf("invalid prompt variant: %q", variant)
	}
	return p, nil
}

// GradeUser builds the text part of the grading request.
func (s *Set) GradeUser(problemText, rubric string) (string, error) {
	return execute(s.gradeUser, GradeData{
		ProblemText: sanitize(problemText),
		Rubric:      sanitize(rubric),
	})
}

// RubricSystem returns the rubric generation system prompt.
func (s *Set) RubricSystem() (string, error) {
	return execute(s.rubricSystem, RubricData{Points: rubricPoints})
}

// RubricUser builds the rubric generation request for a problem.
func (s *Set) RubricUser(problemText string) (string, error) {
	return execute(s.rubricUser, RubricData{
		ProblemText: sanitize(problemText),
		Points:      rubricPoints,
	})
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitize removes the tag markers used to delimit data in prompts and caps
// the length of teacher-supplied text.
func sanitize(s string) string {
	s = markerRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if utf8.RuneCountInString(s) > maxFieldRunes {
		runes := []rune(s)
		s = string(runes[:maxFieldRunes]) + "\n[truncated]"
	}
	return s
}
