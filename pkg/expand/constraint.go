package expand

import (
	"go/ast"
	"go/build/constraint"
	"go/parser"
	"go/token"
	"sort"
)

// maxConstraintTags bounds the truth-table check of requiresTag
const maxConstraintTags = 12

// IsTemplate reports whether src carries a //go:build line that keeps it out of
// every build without tag
func IsTemplate(src []byte, tag string) bool {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, parser.PackageClauseOnly|parser.ParseComments)
	if err != nil {
		return false
	}
	_, _, ok := templateConstraint(file, tag)
	return ok
}

// templateConstraint returns the //go:build comment of file and its expression.
// ok is false when the file has none or when it does not require tag.
func templateConstraint(file *ast.File, tag string) (*ast.Comment, constraint.Expr, bool) {
	for _, group := range file.Comments {
		if group.Pos() >= file.Package {
			break
		}
		for _, c := range group.List {
			if !constraint.IsGoBuild(c.Text) {
				continue
			}
			expr, err := constraint.Parse(c.Text)
			if err != nil {
				return c, nil, false
			}
			return c, expr, requiresTag(expr, tag)
		}
	}
	return nil, nil, false
}

// plusBuildLines returns the legacy // +build comments in the file header
func plusBuildLines(file *ast.File) []*ast.Comment {
	var lines []*ast.Comment
	for _, group := range file.Comments {
		if group.Pos() >= file.Package {
			break
		}
		for _, c := range group.List {
			if constraint.IsPlusBuild(c.Text) {
				lines = append(lines, c)
			}
		}
	}
	return lines
}

// requiresTag reports whether expr is false for every assignment of the other
// tags once tag is unset
func requiresTag(expr constraint.Expr, tag string) bool {
	tags := map[string]bool{}
	collectTags(expr, tags)
	if !tags[tag] {
		return false
	}
	delete(tags, tag)
	if len(tags) > maxConstraintTags {
		return false
	}

	others := make([]string, 0, len(tags))
	for t := range tags {
		others = append(others, t)
	}
	sort.Strings(others)

	for mask := 0; mask < 1<<len(others); mask++ {
		set := map[string]bool{}
		for i, t := range others {
			set[t] = mask&(1<<i) != 0
		}
		if expr.Eval(func(t string) bool { return set[t] }) {
			return false
		}
	}
	return true
}

func collectTags(expr constraint.Expr, tags map[string]bool) {
	switch x := expr.(type) {
	case *constraint.TagExpr:
		tags[x.Tag] = true
	case *constraint.NotExpr:
		collectTags(x.X, tags)
	case *constraint.AndExpr:
		collectTags(x.X, tags)
		collectTags(x.Y, tags)
	case *constraint.OrExpr:
		collectTags(x.X, tags)
		collectTags(x.Y, tags)
	}
}

// negateTag substitutes !tag for tag. The result holds in exactly the builds
// where the template is excluded only because tag is unset.
func negateTag(expr constraint.Expr, tag string) constraint.Expr {
	switch x := expr.(type) {
	case *constraint.TagExpr:
		if x.Tag == tag {
			return &constraint.NotExpr{X: &constraint.TagExpr{Tag: tag}}
		}
		return &constraint.TagExpr{Tag: x.Tag}
	case *constraint.NotExpr:
		if t, ok := x.X.(*constraint.TagExpr); ok && t.Tag == tag {
			return &constraint.TagExpr{Tag: tag}
		}
		return &constraint.NotExpr{X: negateTag(x.X, tag)}
	case *constraint.AndExpr:
		return &constraint.AndExpr{X: negateTag(x.X, tag), Y: negateTag(x.Y, tag)}
	case *constraint.OrExpr:
		return &constraint.OrExpr{X: negateTag(x.X, tag), Y: negateTag(x.Y, tag)}
	}
	return expr
}
