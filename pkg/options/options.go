package options

import (
	"go/scanner"
	"go/token"
	"strings"

	errs "github.com/bxb100/backon/pkg/errors"
)

// DefaultBackoff is the runtime factory used when a directive omits backoff.
// It is resolved against whatever name the runtime package is imported under.
const DefaultBackoff = "NewExponentialBuilder"

// Option names recognized by the directive
const (
	OptionBackoff = "backoff"
	OptionSleep   = "sleep"
	OptionWhen    = "when"
	OptionNotify  = "notify"
	OptionAdjust  = "adjust"
	OptionContext = "context"
)

// kinds maps every recognized option to the value kind it expects
var kinds = map[string]valueKind{
	OptionBackoff: kindRef,
	OptionSleep:   kindRef,
	OptionWhen:    kindRef,
	OptionNotify:  kindRef,
	OptionAdjust:  kindRef,
	OptionContext: kindBool,
}

type valueKind int

const (
	kindRef valueKind = iota
	kindBool
)

// Ref is a reference to a function or factory, written as a qualified identifier
type Ref struct {
	// Path is the reference as written, e.g. "isTemporary" or "time.Sleep"
	Path string
	// Runtime marks a reference into the retry runtime package. Path then holds
	// the unqualified name and the synthesizer adds the import qualifier.
	Runtime bool
	Pos     token.Position
}

// Expr renders the reference as a Go expression under the runtime qualifier
func (r Ref) Expr(runtime string) string {
	if r.Runtime {
		return runtime + "." + r.Path
	}
	return r.Path
}

// Config is the parsed form of a directive's option list
type Config struct {
	Backoff Ref
	Sleep   *Ref
	When    *Ref
	Notify  *Ref
	Adjust  *Ref
	Context bool
	// ContextPos locates the context option when it was given explicitly
	ContextPos token.Position
}

// Default returns the configuration of a directive without options
func Default() *Config {
	return &Config{Backoff: Ref{Path: DefaultBackoff, Runtime: true}}
}

// Parse builds a Config from the directive argument text. pos is the position of
// the first byte of args and is used to locate diagnostics.
func Parse(args string, pos token.Position) (*Config, error) {
	p := newParser(args, pos)
	cfg := Default()
	seen := map[string]bool{}

	for {
		tok, keyPos, lit := p.next()
		if tok == token.EOF {
			break
		}
		if tok == token.COMMA {
			continue
		}
		if tok != token.IDENT {
			return nil, errs.Shape(errs.CodeOptionSyntax, keyPos, "expected option name, found %s", describe(tok, lit))
		}
		key := lit
		kind, known := kinds[key]
		if !known {
			return nil, errs.Shape(errs.CodeUnknownOption, keyPos, "unknown option %q", key)
		}
		if seen[key] {
			return nil, errs.Shape(errs.CodeDuplicateOption, keyPos, "option %q specified more than once", key)
		}
		seen[key] = true

		if tok, at, lit := p.next(); tok != token.ASSIGN {
			return nil, errs.Shape(errs.CodeOptionSyntax, at, "expected '=' after %q, found %s", key, describe(tok, lit))
		}

		switch kind {
		case kindBool:
			value, at, err := p.boolean(key)
			if err != nil {
				return nil, err
			}
			cfg.Context = value
			cfg.ContextPos = at
		case kindRef:
			ref, err := p.reference(key)
			if err != nil {
				return nil, err
			}
			assign(cfg, key, ref)
		}
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func assign(cfg *Config, key string, ref Ref) {
	switch key {
	case OptionBackoff:
		cfg.Backoff = ref
	case OptionSleep:
		cfg.Sleep = &ref
	case OptionWhen:
		cfg.When = &ref
	case OptionNotify:
		cfg.Notify = &ref
	case OptionAdjust:
		cfg.Adjust = &ref
	}
}

// parser tokenizes directive arguments with the Go scanner so references follow
// Go's identifier rules exactly
type parser struct {
	s       scanner.Scanner
	file    *token.File
	base    token.Position
	errs    scanner.ErrorList
	peeked  bool
	peekTok token.Token
	peekPos token.Position
	peekLit string
}

func newParser(args string, base token.Position) *parser {
	fset := token.NewFileSet()
	file := fset.AddFile("", -1, len(args))
	p := &parser{file: file, base: base}
	p.s.Init(file, []byte(args), func(pos token.Position, msg string) {
		p.errs.Add(pos, msg)
	}, 0)
	return p
}

// next returns the next significant token. Automatic semicolons are skipped.
func (p *parser) next() (token.Token, token.Position, string) {
	if p.peeked {
		p.peeked = false
		return p.peekTok, p.peekPos, p.peekLit
	}
	for {
		at, tok, lit := p.s.Scan()
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		return tok, p.locate(at), lit
	}
}

func (p *parser) peek() (token.Token, token.Position, string) {
	if !p.peeked {
		p.peekTok, p.peekPos, p.peekLit = p.next()
		p.peeked = true
	}
	return p.peekTok, p.peekPos, p.peekLit
}

// locate maps an offset inside the argument text onto the directive's position
func (p *parser) locate(at token.Pos) token.Position {
	pos := p.base
	if at.IsValid() && pos.IsValid() {
		off := p.file.Offset(at)
		pos.Offset += off
		pos.Column += off
	}
	return pos
}

func (p *parser) reference(key string) (Ref, error) {
	tok, at, lit := p.next()
	if tok != token.IDENT {
		return Ref{}, errs.Shape(errs.CodeOptionKind, at, "option %q expects a function reference, found %s", key, describe(tok, lit))
	}
	parts := []string{lit}
	for {
		tok, _, _ := p.peek()
		if tok != token.PERIOD {
			break
		}
		p.next()
		tok, after, lit := p.next()
		if tok != token.IDENT {
			return Ref{}, errs.Shape(errs.CodeOptionKind, after, "option %q expects a function reference, found %s after '.'", key, describe(tok, lit))
		}
		parts = append(parts, lit)
	}
	if tok, after, lit := p.peek(); tok != token.EOF && tok != token.COMMA && tok != token.IDENT {
		return Ref{}, errs.Shape(errs.CodeOptionKind, after, "option %q expects a function reference, found trailing %s", key, describe(tok, lit))
	}
	return Ref{Path: strings.Join(parts, "."), Pos: at}, nil
}

func (p *parser) boolean(key string) (bool, token.Position, error) {
	tok, at, lit := p.next()
	if tok == token.IDENT {
		switch lit {
		case "true":
			return true, at, nil
		case "false":
			return false, at, nil
		}
	}
	return false, at, errs.Shape(errs.CodeOptionKind, at, "option %q expects true or false, found %s", key, describe(tok, lit))
}

func (p *parser) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	first := p.errs[0]
	pos := p.base
	if pos.IsValid() {
		pos.Offset += first.Pos.Offset
		pos.Column += first.Pos.Offset
	}
	return errs.Shape(errs.CodeOptionSyntax, pos, "malformed directive: %s", first.Msg)
}

func describe(tok token.Token, lit string) string {
	switch {
	case tok == token.EOF:
		return "end of directive"
	case lit != "":
		return "'" + lit + "'"
	default:
		return "'" + tok.String() + "'"
	}
}
