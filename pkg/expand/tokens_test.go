package expand

import (
	"go/scanner"
	"go/token"
	"testing"
)

// tokens returns the token stream of src without comments and semicolons, so
// two files compare equal when they differ only in layout
func tokens(t *testing.T, src []byte) []string {
	t.Helper()
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	var s scanner.Scanner
	s.Init(file, src, func(pos token.Position, msg string) {
		t.Errorf("%s: %s", pos, msg)
	}, 0)

	var out []string
	for {
		_, tok, lit := s.Scan()
		if tok == token.EOF {
			return out
		}
		if tok == token.SEMICOLON {
			continue
		}
		if lit != "" {
			out = append(out, lit)
		} else {
			out = append(out, tok.String())
		}
	}
}
