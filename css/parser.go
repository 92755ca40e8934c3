package css

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// SyntaxError is returned when stylesheet cannot be parsed.
type SyntaxError struct {
	Filename string
	Line     int
	Err      error
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Filename, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Parser parses CSS stylesheets into editable rule trees.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// state of a single Parse call.
type parseState struct {
	p        *css.Parser
	filename string
	lines    []int // offsets of line starts
	sheet    *Stylesheet
}

// line returns 1-based line number of current parser position.
func (s *parseState) line() int {
	off := s.p.Offset()
	return sort.Search(len(s.lines), func(i int) bool { return s.lines[i] > off })
}

func (s *parseState) fail(err error) error {
	var perr *parse.Error
	if errors.As(err, &perr) {
		return &SyntaxError{Filename: s.filename, Line: perr.Line, Err: errors.New(perr.Message)}
	}
	return &SyntaxError{Filename: s.filename, Line: s.line(), Err: err}
}

func lineStarts(data []byte) []int {
	lines := []int{0}
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, i+1)
		}
	}
	return lines
}

// Parse parses UTF-8 CSS text into a Stylesheet. Unlike browsers, which
// silently drop what they do not understand, parser refuses malformed input:
// optimizer could not prove anything about rules it cannot see.
func (p *Parser) Parse(data []byte, filename string) (*Stylesheet, error) {
	p.log.Debug("Parsing CSS", zap.String("source", filename), zap.Int("bytes", len(data)))

	st := &parseState{
		p:        css.NewParser(parse.NewInputBytes(data), false),
		filename: filename,
		lines:    lineStarts(data),
		sheet:    &Stylesheet{Items: make([]*Item, 0), Warnings: make([]string, 0)},
	}

	items, err := p.parseItems(st, false)
	if err != nil {
		return nil, err
	}
	st.sheet.Items = items
	return st.sheet, nil
}

// parseItems parses a list of items until end of input or, when nested is
// set, until the end of enclosing at-rule block.
func (p *Parser) parseItems(st *parseState, nested bool) ([]*Item, error) {
	items := make([]*Item, 0)

	var selectors []string
	for {
		gt, _, data := st.p.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := st.p.Err(); err != nil && err != io.EOF {
				return nil, st.fail(err)
			}
			if nested {
				return nil, st.fail(errors.New("unexpected end of input inside at-rule block"))
			}
			return items, nil

		case css.EndAtRuleGrammar:
			if !nested {
				return nil, st.fail(errors.New("unbalanced closing brace"))
			}
			// tokenizer closes open blocks by itself at end of input
			if st.p.Err() == io.EOF {
				return nil, st.fail(errors.New("unexpected end of input inside at-rule block"))
			}
			return items, nil

		case css.CommentGrammar:
			// comments are not part of rule tree

		case css.AtRuleGrammar:
			at := &AtRule{
				Name:    strings.ToLower(string(data)),
				Prelude: tokensText(st.p.Values()),
				Line:    st.line(),
			}
			if at.Name == "@charset" {
				// output is always UTF-8, charset is handled when decoding
				p.log.Debug("Dropping @charset", zap.String("source", st.filename))
				continue
			}
			items = append(items, &Item{AtRule: at})

		case css.BeginAtRuleGrammar:
			at := &AtRule{
				Name:     strings.ToLower(string(data)),
				Prelude:  tokensText(st.p.Values()),
				HasBlock: true,
				Line:     st.line(),
			}
			if err := p.parseAtRuleBlock(st, at); err != nil {
				return nil, err
			}
			items = append(items, &Item{AtRule: at})

		case css.QualifiedRuleGrammar:
			// part of selector list followed by comma
			selectors = append(selectors, splitSelectors(data, st.p.Values())...)

		case css.BeginRulesetGrammar:
			rule := &Rule{Line: st.line()}
			rule.Selectors = append(selectors, splitSelectors(data, st.p.Values())...)
			selectors = nil
			if len(rule.Selectors) == 0 {
				return nil, st.fail(errors.New("rule without selector"))
			}
			decls, err := p.parseDeclarations(st, css.EndRulesetGrammar)
			if err != nil {
				return nil, err
			}
			rule.Declarations = decls
			items = append(items, &Item{Rule: rule})

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			return nil, st.fail(fmt.Errorf("declaration %q outside of rule", string(data)))

		case css.EndRulesetGrammar:
			return nil, st.fail(errors.New("unbalanced closing brace"))

		default:
			// TokenGrammar and friends - stray tokens browsers would skip
			st.sheet.Warnings = append(st.sheet.Warnings, fmt.Sprintf("%s:%d: ignoring stray token %q", st.filename, st.line(), string(data)))
			p.log.Debug("Ignoring stray token", zap.String("source", st.filename), zap.ByteString("token", data))
		}
	}
}

// parseAtRuleBlock parses block of the at-rule. Blocks of conditional group
// rules contain rules, blocks of other at-rules (@font-face, @page) contain
// declarations. @keyframes contains rule-like items which are kept as rules
// but never visited by WalkRules.
func (p *Parser) parseAtRuleBlock(st *parseState, at *AtRule) error {
	switch at.Name {
	case "@font-face", "@page", "@property", "@counter-style", "@font-palette-values", "@viewport":
		decls, err := p.parseDeclarations(st, css.EndAtRuleGrammar)
		if err != nil {
			return err
		}
		at.Declarations = decls
		return nil
	}
	items, err := p.parseItems(st, true)
	if err != nil {
		return err
	}
	at.Items = items
	return nil
}

// parseDeclarations parses property declarations until the given end grammar.
func (p *Parser) parseDeclarations(st *parseState, end css.GrammarType) ([]Declaration, error) {
	decls := make([]Declaration, 0)

	for {
		gt, _, data := st.p.Next()

		switch gt {
		case end:
			if st.p.Err() == io.EOF {
				return nil, st.fail(errors.New("unexpected end of input inside declaration block"))
			}
			return decls, nil

		case css.ErrorGrammar:
			if err := st.p.Err(); err != nil && err != io.EOF {
				return nil, st.fail(err)
			}
			return nil, st.fail(errors.New("unexpected end of input inside declaration block"))

		case css.CommentGrammar:

		case css.DeclarationGrammar:
			d, ok := makeDeclaration(string(data), st.p.Values())
			if !ok {
				st.sheet.Warnings = append(st.sheet.Warnings, fmt.Sprintf("%s:%d: dropping empty declaration %q", st.filename, st.line(), string(data)))
				continue
			}
			decls = append(decls, d)

		case css.CustomPropertyGrammar:
			// value of custom property is kept verbatim, whitespace included
			decls = append(decls, Declaration{Property: string(data), Value: strings.TrimSpace(rawTokens(st.p.Values()))})

		case css.BeginRulesetGrammar, css.BeginAtRuleGrammar, css.QualifiedRuleGrammar:
			return nil, st.fail(errors.New("nested rules are not supported"))

		default:
			return nil, st.fail(fmt.Errorf("unexpected %q inside declaration block", string(data)))
		}
	}
}

// ParseDeclarations parses inline declaration list ("color: red; margin: 0").
func (p *Parser) ParseDeclarations(text string) ([]Declaration, error) {
	parser := css.NewParser(parse.NewInputString(text), true)
	decls := make([]Declaration, 0)
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && err != io.EOF {
				return nil, err
			}
			return decls, nil
		case css.DeclarationGrammar:
			if d, ok := makeDeclaration(string(data), parser.Values()); ok {
				decls = append(decls, d)
			}
		case css.CustomPropertyGrammar:
			decls = append(decls, Declaration{Property: string(data), Value: strings.TrimSpace(rawTokens(parser.Values()))})
		}
	}
}

// makeDeclaration builds declaration from property name and value tokens,
// separating trailing "!important".
func makeDeclaration(prop string, tokens []css.Token) (Declaration, bool) {
	d := Declaration{Property: prop}

	// strip trailing whitespace, then look for "!" "important"
	end := len(tokens)
	for end > 0 && tokens[end-1].TokenType == css.WhitespaceToken {
		end--
	}
	if end >= 2 && tokens[end-1].TokenType == css.IdentToken && strings.EqualFold(string(tokens[end-1].Data), "important") {
		i := end - 2
		for i >= 0 && tokens[i].TokenType == css.WhitespaceToken {
			i--
		}
		if i >= 0 && tokens[i].TokenType == css.DelimToken && string(tokens[i].Data) == "!" {
			d.Important = true
			end = i
		}
	}
	d.Value = tokensText(tokens[:end])
	return d, d.Value != ""
}

// tokensText joins tokens collapsing whitespace runs to a single space.
func tokensText(tokens []css.Token) string {
	var sb strings.Builder
	pendingSpace := false
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken || t.TokenType == css.CommentToken {
			pendingSpace = sb.Len() > 0
			continue
		}
		if pendingSpace {
			sb.WriteByte(' ')
			pendingSpace = false
		}
		sb.Write(t.Data)
	}
	return sb.String()
}

func rawTokens(tokens []css.Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.Write(t.Data)
	}
	return sb.String()
}

// splitSelectors extracts selector strings from token data splitting on
// top-level commas. Commas inside functional pseudo-classes (":is(a, b)")
// and attribute selectors do not split.
func splitSelectors(data []byte, values []css.Token) []string {
	tokens := make([]css.Token, 0, len(values)+1)
	if len(data) > 0 {
		tokens = append(tokens, css.Token{TokenType: css.IdentToken, Data: data})
	}
	tokens = append(tokens, values...)

	var (
		selectors []string
		start     int
		depth     int
	)
	flush := func(end int) {
		if s := tokensText(tokens[start:end]); s != "" {
			selectors = append(selectors, s)
		}
	}
	for i, t := range tokens {
		switch t.TokenType {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			depth--
		case css.CommaToken:
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(tokens))
	return selectors
}
