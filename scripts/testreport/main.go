// Command testreport merges `go test -json` output with the TestPurpose
// headers found on test functions and writes JSON and Markdown reports.
//
//	go test -json ./... > test.json
//	go run ./scripts/testreport -input test.json -out-json report.json -out-md report.md
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const modulePath = "github.com/reelgate/reelgate"

// TestMetadata holds the header fields parsed from a test's doc comment.
type TestMetadata struct {
	Name       string `json:"name"`
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Package    string `json:"package"`
	Category   string `json:"category"`
}

// testEvent is one line of `go test -json`.
type testEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

// Result is the merged outcome of one test.
type Result struct {
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	Elapsed     float64      `json:"elapsed_seconds"`
	Package     string       `json:"package"`
	Failure     string       `json:"failure_reason,omitempty"`
	Annotations TestMetadata `json:"annotations"`
}

// Summary is the report document.
type Summary struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Results     []Result  `json:"results"`
}

var categoryOrder = []string{"Policy", "Resolution", "Gating", "API", "Audit", "Config", "Observability", "Other"}

func main() {
	input := flag.String("input", "", "path to go test -json output")
	outJSON := flag.String("out-json", "", "path for the JSON report")
	outMD := flag.String("out-md", "", "path for the Markdown report")
	root := flag.String("root", ".", "repository root to scan for test headers")
	flag.Parse()

	if *input == "" || *outJSON == "" || *outMD == "" {
		fmt.Fprintln(os.Stderr, "usage: testreport -input <json> -out-json <file> -out-md <file>")
		os.Exit(2)
	}

	meta, err := scanMetadata(os.DirFS(*root))
	if err != nil {
		fmt.Fprintf(os.Stderr, "testreport: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testreport: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	summary := summarize(mergeResults(f, meta))
	summary.GeneratedAt = time.Now()

	if err := writeFile(*outJSON, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "testreport: %v\n", err)
		os.Exit(1)
	}
	if err := writeFile(*outMD, func(w io.Writer) error {
		return writeMarkdown(w, summary)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "testreport: %v\n", err)
		os.Exit(1)
	}

	// Fail CI when any test failed.
	if summary.Failed > 0 {
		fmt.Fprintf(os.Stderr, "testreport: %d tests failed\n", summary.Failed)
		os.Exit(1)
	}
}

// scanMetadata parses every _test.go file under fsys and returns the test
// headers keyed by "<import path>.<TestName>".
func scanMetadata(fsys fs.FS) (map[string]TestMetadata, error) {
	out := make(map[string]TestMetadata)
	fset := token.NewFileSet()

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor" || (d.Name() != "." && strings.HasPrefix(d.Name(), ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}

		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
		if err != nil {
			return nil
		}

		pkg := importPath(path)
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			m := parseHeader(fn.Doc)
			m.Name = fn.Name.Name
			m.Package = pkg
			m.Category = category(pkg)
			out[pkg+"."+fn.Name.Name] = m
		}
		return nil
	})
	return out, err
}

func parseHeader(doc *ast.CommentGroup) TestMetadata {
	var m TestMetadata
	if doc == nil {
		return m
	}
	fields := map[string]*string{
		"TestPurpose:":  &m.Purpose,
		"Scope:":        &m.Scope,
		"Security:":     &m.Security,
		"Expected:":     &m.Expected,
		"Test Case ID:": &m.TestCaseID,
	}
	for _, line := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(line.Text, "//"))
		for prefix, dst := range fields {
			if rest, ok := strings.CutPrefix(text, prefix); ok {
				*dst = strings.TrimSpace(rest)
			}
		}
	}
	return m
}

func importPath(file string) string {
	dir := filepath.ToSlash(filepath.Dir(file))
	if dir == "." {
		return modulePath
	}
	return modulePath + "/" + dir
}

func category(pkg string) string {
	rel := strings.TrimPrefix(pkg, modulePath+"/")
	switch {
	case strings.HasPrefix(rel, "internal/rbac"):
		return "Policy"
	case strings.HasPrefix(rel, "internal/identity"):
		return "Resolution"
	case strings.HasPrefix(rel, "internal/gate"):
		return "Gating"
	case strings.HasPrefix(rel, "internal/transport"):
		return "API"
	case strings.HasPrefix(rel, "internal/audit"):
		return "Audit"
	case strings.HasPrefix(rel, "internal/config"):
		return "Config"
	case strings.HasPrefix(rel, "internal/observability"):
		return "Observability"
	default:
		return "Other"
	}
}

// mergeResults folds test events into per-test results. Tests found in meta
// but absent from the event stream are reported as "not run"; subtests
// inherit the header of their parent.
func mergeResults(r io.Reader, meta map[string]TestMetadata) []Result {
	states := make(map[string]*Result, len(meta))
	for key, m := range meta {
		states[key] = &Result{Name: m.Name, Package: m.Package, Status: "not run", Annotations: m}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev testEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}

		key := ev.Package + "." + ev.Test
		res, ok := states[key]
		if !ok {
			m := TestMetadata{Name: ev.Test, Package: ev.Package, Category: category(ev.Package)}
			parent, _, isSub := strings.Cut(ev.Test, "/")
			if pm, found := meta[ev.Package+"."+parent]; found && isSub {
				m = pm
				m.Name = ev.Test
			}
			res = &Result{Name: ev.Test, Package: ev.Package, Annotations: m}
			states[key] = res
		}

		switch ev.Action {
		case "pass", "fail":
			res.Status = ev.Action
			res.Elapsed = ev.Elapsed
		case "skip":
			res.Status = "skip"
		case "output":
			res.Failure += ev.Output
		}
	}

	out := make([]Result, 0, len(states))
	for _, res := range states {
		if res.Status != "fail" {
			res.Failure = ""
		}
		out = append(out, *res)
	}
	slices.SortFunc(out, func(a, b Result) int {
		if c := strings.Compare(a.Package, b.Package); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func summarize(results []Result) Summary {
	s := Summary{Results: results}
	for _, r := range results {
		s.Total++
		switch r.Status {
		case "pass":
			s.Passed++
		case "fail":
			s.Failed++
		case "skip":
			s.Skipped++
		}
	}
	return s
}

func writeMarkdown(w io.Writer, s Summary) error {
	var sb strings.Builder
	sb.WriteString("# Reelgate Test Report\n\n")
	if !s.GeneratedAt.IsZero() {
		fmt.Fprintf(&sb, "**Generated:** %s  \n", s.GeneratedAt.Format(time.RFC1123))
	}
	status := "PASSED"
	if s.Failed > 0 {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "**Status:** %s\n\n", status)

	rate := 0.0
	if s.Total > 0 {
		rate = float64(s.Passed) / float64(s.Total) * 100
	}
	sb.WriteString("| Total | Passed | Failed | Skipped | Pass Rate |\n")
	sb.WriteString("|-------|--------|--------|---------|-----------|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %.1f%% |\n\n", s.Total, s.Passed, s.Failed, s.Skipped, rate)

	byCategory := make(map[string][]Result)
	for _, r := range s.Results {
		byCategory[r.Annotations.Category] = append(byCategory[r.Annotations.Category], r)
	}
	for _, cat := range categoryOrder {
		results := byCategory[cat]
		if len(results) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n", cat)
		sb.WriteString("| ID | Test | Status | Purpose | Security |\n")
		sb.WriteString("|----|------|--------|---------|----------|\n")
		for _, r := range results {
			a := r.Annotations
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n", a.TestCaseID, r.Name, r.Status, a.Purpose, a.Security)
		}
		sb.WriteString("\n")
	}

	if s.Failed > 0 {
		sb.WriteString("## Failures\n\n")
		for _, r := range s.Results {
			if r.Status == "fail" {
				fmt.Fprintf(&sb, "### %s (%s)\n\n```\n%s\n```\n\n", r.Name, r.Package, r.Failure)
			}
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
