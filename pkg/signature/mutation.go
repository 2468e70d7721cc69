package signature

import (
	"go/ast"
	"go/token"
)

// MutatesReceiver reports whether body writes through the receiver recv:
// an assignment, increment, range assignment or address-of whose operand is
// rooted at recv. Identifiers are matched by the object they resolve to, so a
// local variable that shadows the receiver is not the receiver. Method calls
// are not inspected, so interior mutability (atomics, mutexes) does not count
// as a write.
func MutatesReceiver(body *ast.BlockStmt, recv *ast.Ident) bool {
	if body == nil || recv == nil || recv.Name == "_" {
		return false
	}
	found := false
	ast.Inspect(body, func(n ast.Node) bool {
		if found {
			return false
		}
		switch s := n.(type) {
		case *ast.AssignStmt:
			if s.Tok == token.DEFINE {
				return true
			}
			for _, lhs := range s.Lhs {
				if refersTo(rootIdent(lhs), recv) {
					found = true
				}
			}
		case *ast.IncDecStmt:
			if refersTo(rootIdent(s.X), recv) {
				found = true
			}
		case *ast.RangeStmt:
			if s.Tok == token.ASSIGN && (refersTo(rootIdent(s.Key), recv) || refersTo(rootIdent(s.Value), recv)) {
				found = true
			}
		case *ast.UnaryExpr:
			if s.Op == token.AND && refersTo(rootIdent(s.X), recv) {
				found = true
			}
		}
		return !found
	})
	return found
}

// refersTo reports whether id denotes the same variable as recv. Files parsed
// without object resolution fall back to comparing names.
func refersTo(id, recv *ast.Ident) bool {
	if id == nil || id.Name != recv.Name {
		return false
	}
	if recv.Obj == nil {
		return true
	}
	return id.Obj == recv.Obj
}

// rootIdent returns the identifier an addressable expression hangs off
func rootIdent(expr ast.Expr) *ast.Ident {
	for expr != nil {
		switch e := expr.(type) {
		case *ast.Ident:
			return e
		case *ast.SelectorExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.StarExpr:
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		default:
			return nil
		}
	}
	return nil
}
