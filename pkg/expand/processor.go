package expand

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/scanner"
	"go/token"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/imports"

	"github.com/bxb100/backon/pkg/config"
	errs "github.com/bxb100/backon/pkg/errors"
	"github.com/bxb100/backon/pkg/logger"
	"github.com/bxb100/backon/pkg/plan"
	"github.com/bxb100/backon/pkg/signature"
)

// Header is the first line of every generated file
const Header = "// Code generated by backon. DO NOT EDIT."

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// Processor turns template files into generated files
type Processor struct {
	cfg    config.GeneratorConfig
	sleep  plan.SleepPolicy
	logger logger.Logger
}

// NewProcessor creates a processor for the given generator settings
func NewProcessor(cfg config.GeneratorConfig, log logger.Logger) *Processor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Processor{
		cfg:    cfg,
		sleep:  plan.SleepPolicyFor(cfg.StrictSleep),
		logger: log,
	}
}

// FileResult is the outcome of processing one template
type FileResult struct {
	Source string
	Output string
	// Qualifier is the name generated code uses for the runtime package
	Qualifier  string
	Expansions []*Expansion
	// Code is the formatted generated file; nil when the template has no directives
	Code []byte
}

// Summaries describes every expansion of the file in source order
func (r *FileResult) Summaries() []Summary {
	out := make([]Summary, 0, len(r.Expansions))
	for _, e := range r.Expansions {
		out = append(out, e.Summary(r.Qualifier))
	}
	return out
}

// OutputPath returns the generated file name for a template
func (p *Processor) OutputPath(path string) string {
	return strings.TrimSuffix(path, ".go") + p.cfg.OutputSuffix
}

// ProcessFile expands every annotated function of the template at path. All
// failing functions are reported together; no code is produced when any fails.
func (p *Processor) ProcessFile(path string, src []byte) (*FileResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, syntaxDiagnostics(err)
	}

	result := &FileResult{Source: path, Output: p.OutputPath(path)}

	found, diags := findDirectives(fset, file)
	if len(found) == 0 && len(diags) == 0 {
		p.logger.DebugWithFields("No directives found", map[string]interface{}{"file": path})
		return result, nil
	}

	build, expr, ok := templateConstraint(file, p.cfg.BuildTag)
	if !ok {
		diags = append(diags, errs.Source(errs.CodeMissingBuildTag, fset.Position(file.Package),
			"file has %s directives but is not excluded by //go:build %s", DirectivePrefix, p.cfg.BuildTag))
		return nil, errors.Join(diags...)
	}

	qualifier, imported := p.qualifier(file)
	result.Qualifier = qualifier
	opts := Options{Qualifier: qualifier, SleepPolicy: p.sleep}
	source := signature.Source{Fset: fset, File: file, Src: src}

	for _, a := range found {
		sig, err := signature.Build(source, a.fn)
		if err != nil {
			diags = append(diags, err)
			continue
		}
		exp, err := Expand(sig, a.directive, opts)
		if err != nil {
			diags = append(diags, err)
			continue
		}
		p.logger.DebugWithFields("Function expanded", map[string]interface{}{
			"file":     path,
			"function": QualifiedName(sig),
			"plan":     exp.Plan.String(),
		})
		result.Expansions = append(result.Expansions, exp)
	}
	if len(diags) > 0 {
		return nil, errors.Join(diags...)
	}

	var edits []edit
	edits = append(edits, edit{
		start: offset(fset, build.Slash),
		end:   offset(fset, build.End()),
		text:  "//go:build " + negateTag(expr, p.cfg.BuildTag).String(),
	})
	for _, c := range plusBuildLines(file) {
		edits = append(edits, lineRemoval(fset, src, c))
	}
	for i, a := range found {
		edits = append(edits, lineRemoval(fset, src, a.comment))
		if sep := a.separator(); sep != nil {
			edits = append(edits, lineRemoval(fset, src, sep))
		}
		edits = append(edits, edit{
			start: offset(fset, a.fn.Body.Lbrace),
			end:   offset(fset, a.fn.Body.End()),
			text:  result.Expansions[i].Function.Body,
		})
	}

	code, err := p.render(result.Output, apply(src, edits), qualifier, imported)
	if err != nil {
		return nil, err
	}
	result.Code = code
	return result, nil
}

// render adds the runtime import and formats the spliced text
func (p *Processor) render(filename string, text []byte, qualifier string, imported bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Header)
	buf.WriteString("\n\n")
	buf.Write(text)

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, buf.Bytes(), parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated code: %w", err)
	}

	if !imported {
		name := qualifier
		if name == packageName(p.cfg.RuntimePackage) {
			name = ""
		}
		astutil.AddNamedImport(fset, file, name, p.cfg.RuntimePackage)
	}

	buf.Reset()
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("failed to print generated code: %w", err)
	}

	out, err := imports.Process(filename, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: !p.cfg.FixImports,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format generated code: %w", err)
	}
	return out, nil
}

// qualifier picks the name generated code uses for the runtime package. An
// existing import is reused; otherwise the package name is taken unless the file
// already uses that identifier, then the reserved-prefix form, numbered until it
// is free as well.
func (p *Processor) qualifier(file *ast.File) (string, bool) {
	runtime := p.cfg.RuntimePackage
	base := packageName(runtime)

	used := make(map[string]bool)
	for _, imp := range file.Imports {
		importPath, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := packageName(importPath)
		if imp.Name != nil {
			name = imp.Name.Name
		}
		if importPath == runtime && name != "_" && name != "." {
			return name, true
		}
		used[name] = true
	}
	ast.Inspect(file, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok {
			used[id.Name] = true
		}
		return true
	})

	if !used[base] {
		return base, false
	}
	name := signature.ReservedPrefix + base
	for i := 2; used[name]; i++ {
		name = signature.ReservedPrefix + base + strconv.Itoa(i)
	}
	return name, false
}

// packageName guesses the package name of an import path from its last element,
// skipping a major version suffix
func packageName(importPath string) string {
	base := path.Base(importPath)
	if majorVersion.MatchString(base) {
		base = path.Base(path.Dir(importPath))
	}
	return base
}

// syntaxDiagnostics converts parser errors into source diagnostics
func syntaxDiagnostics(err error) error {
	var list scanner.ErrorList
	if !errors.As(err, &list) {
		return errs.Source(errs.CodeSyntax, token.Position{}, "%v", err)
	}
	diags := make([]*errs.Error, 0, len(list))
	for _, e := range list {
		diags = append(diags, errs.Source(errs.CodeSyntax, e.Pos, "%s", e.Msg))
	}
	return errs.Join(diags...)
}

// edit replaces src[start:end] with text
type edit struct {
	start, end int
	text       string
}

func offset(fset *token.FileSet, pos token.Pos) int {
	return fset.Position(pos).Offset
}

// lineRemoval deletes the line holding c, indentation and newline included
func lineRemoval(fset *token.FileSet, src []byte, c *ast.Comment) edit {
	start := offset(fset, c.Slash)
	for start > 0 && (src[start-1] == ' ' || src[start-1] == '\t') {
		start--
	}
	end := offset(fset, c.End())
	if end < len(src) && src[end] == '\r' {
		end++
	}
	if end < len(src) && src[end] == '\n' {
		end++
	}
	return edit{start: start, end: end}
}

// apply performs non-overlapping edits on a copy of src
func apply(src []byte, edits []edit) []byte {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var out bytes.Buffer
	last := 0
	for _, e := range edits {
		out.Write(src[last:e.start])
		out.WriteString(e.text)
		last = e.end
	}
	out.Write(src[last:])
	return out.Bytes()
}
