package expand

import (
	"go/ast"
	"go/token"
	"strings"

	errs "github.com/bxb100/backon/pkg/errors"
)

// DirectivePrefix starts the comment line that marks a function for expansion
const DirectivePrefix = "//backon:retry"

// annotated is a function declaration together with its directive
type annotated struct {
	fn        *ast.FuncDecl
	group     *ast.CommentGroup
	comment   *ast.Comment
	directive Directive
}

// parseDirective reports whether c is a directive and extracts its option text
func parseDirective(fset *token.FileSet, c *ast.Comment) (Directive, bool) {
	if !strings.HasPrefix(c.Text, DirectivePrefix) {
		return Directive{}, false
	}
	rest := c.Text[len(DirectivePrefix):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return Directive{}, false
	}
	args := strings.TrimLeft(rest, " \t")
	offset := len(c.Text) - len(args)
	return Directive{
		Args: args,
		Pos:  fset.Position(c.Slash + token.Pos(offset)),
	}, true
}

// isBlockDirective reports whether c is a /* */ comment spelling a directive.
// Only line comments are directives.
func isBlockDirective(c *ast.Comment) bool {
	if !strings.HasPrefix(c.Text, "/*") {
		return false
	}
	body := strings.TrimSpace(strings.TrimSuffix(c.Text[2:], "*/"))
	name := DirectivePrefix[2:]
	if !strings.HasPrefix(body, name) {
		return false
	}
	rest := body[len(name):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n'
}

// findDirectives pairs every directive in file with the function it documents.
// Directives outside a function's doc comment and repeated directives are
// reported; the functions they belong to are left out.
func findDirectives(fset *token.FileSet, file *ast.File) ([]annotated, []error) {
	owners := make(map[*ast.CommentGroup]*ast.FuncDecl)
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Doc != nil {
			owners[fn.Doc] = fn
		}
	}

	var found []annotated
	var diags []error
	rejected := make(map[*ast.FuncDecl]bool)
	index := make(map[*ast.FuncDecl]int)

	for _, group := range file.Comments {
		for _, c := range group.List {
			if isBlockDirective(c) {
				diags = append(diags, errs.Shape(errs.CodeMisplacedDirective, fset.Position(c.Slash),
					"%s must be written as a line comment", DirectivePrefix))
				continue
			}
			d, ok := parseDirective(fset, c)
			if !ok {
				continue
			}
			fn, owned := owners[group]
			if !owned {
				diags = append(diags, errs.Shape(errs.CodeMisplacedDirective, fset.Position(c.Slash),
					"%s must be part of a function's doc comment", DirectivePrefix))
				continue
			}
			if _, seen := index[fn]; seen {
				if !rejected[fn] {
					diags = append(diags, errs.Shape(errs.CodeDuplicateDirective, fset.Position(c.Slash),
						"function %s has more than one %s directive", fn.Name.Name, DirectivePrefix))
					rejected[fn] = true
				}
				continue
			}
			index[fn] = len(found)
			found = append(found, annotated{fn: fn, group: group, comment: c, directive: d})
		}
	}

	if len(rejected) == 0 {
		return found, diags
	}
	kept := found[:0]
	for _, a := range found {
		if !rejected[a.fn] {
			kept = append(kept, a)
		}
	}
	return kept, diags
}

// separator returns the empty "//" line right above a directive that closes its
// doc comment, so the remaining doc does not end in a blank line
func (a annotated) separator() *ast.Comment {
	list := a.group.List
	n := len(list)
	if n < 2 || list[n-1] != a.comment || list[n-2].Text != "//" {
		return nil
	}
	return list[n-2]
}
