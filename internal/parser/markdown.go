// Package parser reads markdown plan files. A plan file lists tickets as a
// markdown list, with optional yaml frontmatter overriding configuration:
//
//	---
//	base_branch: develop
//	max_parallel: 4
//	test_command: go test ./...
//	---
//
//	# Sprint 42
//
//	- 197: 200
//	- 198: 197, 201
//	- 199
//	- 200
//	- 201
//
// "197: 200" declares ticket 197 with prerequisite 200. Ticket ids may be
// written with or without a leading "#".
package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// ticketItemRegex matches a plan list item: "197", "#197", "197: 200, #201".
var ticketItemRegex = regexp.MustCompile(`^#?(\d+)\s*(?::\s*(.*))?$`)

// Overrides are plan-file settings that take precedence over the config file
// but not over explicit CLI flags.
type Overrides struct {
	BaseBranch  string `yaml:"base_branch"`
	GitRemote   string `yaml:"git_remote"`
	MaxParallel *int   `yaml:"max_parallel"`
	TestCommand string `yaml:"test_command"`
}

// Plan is a parsed plan file: the tickets to run, their dependency map, and
// any frontmatter overrides.
type Plan struct {
	Tickets   []int         // In file order
	Deps      map[int][]int // child -> parents
	Overrides Overrides
}

// MarkdownParser parses markdown plan files.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// NewMarkdownParser creates a plan file parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{markdown: goldmark.New()}
}

// Parse reads a plan from r.
func (p *MarkdownParser) Parse(r io.Reader) (*Plan, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	plan := &Plan{Deps: make(map[int][]int)}

	content, frontmatter := extractFrontmatter(content)
	if frontmatter != nil {
		if err := yaml.Unmarshal(frontmatter, &plan.Overrides); err != nil {
			return nil, fmt.Errorf("parse plan frontmatter: %w", err)
		}
	}

	doc := p.markdown.Parser().Parse(text.NewReader(content))

	seen := make(map[int]bool)
	walkErr := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		item, ok := n.(*ast.ListItem)
		if !ok {
			return ast.WalkContinue, nil
		}

		line := strings.TrimSpace(extractText(item, content))
		if line == "" {
			return ast.WalkSkipChildren, nil
		}

		m := ticketItemRegex.FindStringSubmatch(line)
		if m == nil {
			return ast.WalkStop, fmt.Errorf("unrecognized plan entry %q", line)
		}

		ticket, err := strconv.Atoi(m[1])
		if err != nil {
			return ast.WalkStop, fmt.Errorf("invalid ticket in plan entry %q: %w", line, err)
		}
		if seen[ticket] {
			return ast.WalkStop, fmt.Errorf("ticket #%d listed more than once", ticket)
		}
		seen[ticket] = true
		plan.Tickets = append(plan.Tickets, ticket)

		if deps := strings.TrimSpace(m[2]); deps != "" {
			for _, tok := range strings.Split(deps, ",") {
				tok = strings.TrimPrefix(strings.TrimSpace(tok), "#")
				parent, err := strconv.Atoi(tok)
				if err != nil {
					return ast.WalkStop, fmt.Errorf("invalid prerequisite %q for ticket #%d: %w", tok, ticket, err)
				}
				plan.Deps[ticket] = append(plan.Deps[ticket], parent)
			}
		}

		return ast.WalkSkipChildren, nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	if len(plan.Tickets) == 0 {
		return nil, fmt.Errorf("plan contains no tickets")
	}

	return plan, nil
}

// ParseFile reads a plan from a file on disk.
func (p *MarkdownParser) ParseFile(path string) (*Plan, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(bytes.NewReader(data))
}

// extractFrontmatter splits yaml frontmatter off markdown content. Returns
// the remaining content and the frontmatter bytes (nil if absent).
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))
	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}

	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter := bytes.Join(lines[1:i], []byte("\n"))
			rest := bytes.Join(lines[i+1:], []byte("\n"))
			return rest, frontmatter
		}
	}
	return content, nil
}

// extractText collects the raw text under a node.
func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
