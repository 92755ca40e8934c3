// Package selector computes structural facts about CSS selectors:
// specificity, what a matching element must carry and which pseudo states
// are involved. Facts are purely syntactic and are shared by all passes
// through Cache.
package selector

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	"cssopt/analysis"
)

// Combinator joins compound selectors. Zero value is used for the first
// compound of a selector.
type Combinator byte

const (
	None       Combinator = 0
	Descendant Combinator = ' '
	Child      Combinator = '>'
	Adjacent   Combinator = '+'
	Sibling    Combinator = '~'
)

// Attribute is an attribute selector, Op is empty for presence test.
type Attribute struct {
	Name  string
	Op    string
	Value string
}

// Compound is a sequence of simple selectors not separated by combinators.
type Compound struct {
	Combinator    Combinator // combinator preceding this compound
	Tag           string     // lower case, empty for universal
	IDs           []string
	Classes       []string
	Attributes    []Attribute
	PseudoClasses []string // name with arguments, e.g. "hover", "not(.a)"
	PseudoElement string
}

// Requirement returns what an element has to carry to be matched by the
// compound. Functional pseudo-classes are ignored which makes requirement
// weaker, never stronger.
func (c Compound) Requirement() analysis.Requirement {
	req := analysis.Requirement{
		Tag:     c.Tag,
		Classes: slices.Clone(c.Classes),
		IDs:     slices.Clone(c.IDs),
	}
	for _, a := range c.Attributes {
		if !slices.Contains(req.Attributes, a.Name) {
			req.Attributes = append(req.Attributes, a.Name)
		}
	}
	return req
}

// Entry holds memoized facts about one selector.
type Entry struct {
	Text          string
	Compounds     []Compound
	Specificity   [3]int   // (ids, classes/attributes/pseudo-classes, types/pseudo-elements)
	Classes       []string // every class mentioned, including inside :not() and friends
	IDs           []string // every id mentioned
	Tags          []string
	PseudoElement string
	Dynamic       bool // depends on user interaction or document state (:hover, :checked...)
	AttrClass     bool // attribute selector on "class" somewhere
	AttrID        bool // attribute selector on "id" somewhere
}

// Key returns the rightmost compound - the one describing matched element.
func (e *Entry) Key() Compound {
	if len(e.Compounds) == 0 {
		return Compound{}
	}
	return e.Compounds[len(e.Compounds)-1]
}

// Less compares specificity.
func (e *Entry) Less(o *Entry) bool {
	for i := range e.Specificity {
		if e.Specificity[i] != o.Specificity[i] {
			return e.Specificity[i] < o.Specificity[i]
		}
	}
	return false
}

// statePseudoClasses depend on interaction or document state rather than on
// structure of the markup.
var statePseudoClasses = map[string]bool{
	"hover": true, "active": true, "focus": true, "focus-within": true, "focus-visible": true,
	"visited": true, "link": true, "any-link": true, "target": true, "target-within": true,
	"checked": true, "indeterminate": true, "enabled": true, "disabled": true,
	"valid": true, "invalid": true, "user-valid": true, "user-invalid": true,
	"placeholder-shown": true, "autofill": true, "default": true, "open": true, "popover-open": true,
	"fullscreen": true, "modal": true, "playing": true, "paused": true, "current": true,
	"past": true, "future": true, "read-only": true, "read-write": true, "required": true, "optional": true,
}

// legacyPseudoElements may be written with a single colon.
var legacyPseudoElements = map[string]bool{
	"before": true, "after": true, "first-line": true, "first-letter": true,
}

// token is a lexer token with escapes still in place.
type token struct {
	tt   css.TokenType
	data string
}

func lex(text string) ([]token, error) {
	l := css.NewLexer(parse.NewInputString(text))
	var tokens []token
	for {
		tt, data := l.Next()
		switch tt {
		case css.ErrorToken:
			if err := l.Err(); err != nil && err != io.EOF {
				return nil, err
			}
			return tokens, nil
		case css.CommentToken:
			continue
		}
		tokens = append(tokens, token{tt: tt, data: string(data)})
	}
}

// Normalize returns canonical text of a selector: comments removed,
// whitespace collapsed and dropped around combinators.
func Normalize(text string) string {
	tokens, err := lex(text)
	if err != nil {
		return strings.Join(strings.Fields(text), " ")
	}
	return render(tokens)
}

func isCombinator(t token) bool {
	return t.tt == css.DelimToken && (t.data == ">" || t.data == "+" || t.data == "~")
}

// tightAfter tokens are never followed by whitespace in normalized text.
func tightAfter(t token) bool {
	switch t.tt {
	case css.CommaToken, css.LeftParenthesisToken, css.FunctionToken:
		return true
	}
	return isCombinator(t)
}

// tightBefore tokens are never preceded by whitespace in normalized text.
func tightBefore(t token) bool {
	switch t.tt {
	case css.CommaToken, css.RightParenthesisToken:
		return true
	}
	return isCombinator(t)
}

func render(tokens []token) string {
	var sb strings.Builder
	var prev *token
	pending := false
	for i := range tokens {
		t := &tokens[i]
		if t.tt == css.WhitespaceToken {
			pending = true
			continue
		}
		if pending && prev != nil && !tightAfter(*prev) && !tightBefore(*t) {
			sb.WriteByte(' ')
		}
		pending = false
		sb.WriteString(t.data)
		prev = t
	}
	return sb.String()
}

// Unescape resolves CSS escapes in an identifier ("sm\:p-4" -> "sm:p-4").
func Unescape(ident string) string {
	if !strings.Contains(ident, `\`) {
		return ident
	}
	var sb strings.Builder
	for i := 0; i < len(ident); i++ {
		c := ident[i]
		if c != '\\' || i+1 >= len(ident) {
			sb.WriteByte(c)
			continue
		}
		i++
		j := i
		for j < len(ident) && j-i < 6 && isHex(ident[j]) {
			j++
		}
		if j == i {
			sb.WriteByte(ident[i])
			continue
		}
		var r rune
		for _, h := range ident[i:j] {
			r = r*16 + hexValue(byte(h))
		}
		if r == 0 || r > 0x10FFFF {
			r = '\uFFFD'
		}
		sb.WriteRune(r)
		// single whitespace terminates hex escape
		if j < len(ident) && (ident[j] == ' ' || ident[j] == '\t' || ident[j] == '\n') {
			j++
		}
		i = j - 1
	}
	return sb.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) rune {
	switch {
	case c >= '0' && c <= '9':
		return rune(c - '0')
	case c >= 'a' && c <= 'f':
		return rune(c-'a') + 10
	default:
		return rune(c-'A') + 10
	}
}

// Parse computes entry for a single (comma-free) selector.
func Parse(text string) (*Entry, error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, fmt.Errorf("malformed selector %q: %w", text, err)
	}
	e := &Entry{Text: render(tokens)}
	if e.Text == "" {
		return nil, errors.New("empty selector")
	}

	sp := &selParser{tokens: tokens, entry: e}
	compounds, spec, err := sp.complex(false)
	if err != nil {
		return nil, fmt.Errorf("malformed selector %q: %w", e.Text, err)
	}
	if sp.pos < len(sp.tokens) {
		if sp.tokens[sp.pos].tt == css.CommaToken {
			return nil, fmt.Errorf("malformed selector %q: selector lists must be split first", e.Text)
		}
		return nil, fmt.Errorf("malformed selector %q: unexpected %q", e.Text, sp.tokens[sp.pos].data)
	}
	e.Compounds = compounds
	e.Specificity = spec
	e.PseudoElement = e.Key().PseudoElement
	for _, c := range compounds {
		if c.Tag != "" {
			e.Tags = append(e.Tags, c.Tag)
		}
	}
	e.Classes = sortedUnique(e.Classes)
	e.IDs = sortedUnique(e.IDs)
	e.Tags = sortedUnique(e.Tags)
	return e, nil
}

func sortedUnique(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	sort.Strings(list)
	return slices.Compact(list)
}

// selParser is a recursive descent parser over lexer tokens. Mentions of
// classes, ids and state pseudo-classes are collected into entry at any
// nesting level.
type selParser struct {
	tokens []token
	pos    int
	entry  *Entry
}

func (sp *selParser) peek() (token, bool) {
	if sp.pos >= len(sp.tokens) {
		return token{}, false
	}
	return sp.tokens[sp.pos], true
}

func (sp *selParser) skipSpace() bool {
	skipped := false
	for sp.pos < len(sp.tokens) && sp.tokens[sp.pos].tt == css.WhitespaceToken {
		sp.pos++
		skipped = true
	}
	return skipped
}

func combinatorOf(t token) (Combinator, bool) {
	if t.tt != css.DelimToken {
		return None, false
	}
	switch t.data {
	case ">":
		return Child, true
	case "+":
		return Adjacent, true
	case "~":
		return Sibling, true
	}
	return None, false
}

// complex parses compound selectors joined by combinators until comma,
// closing parenthesis or end of input. Relative selectors (inside :has())
// may start with a combinator.
func (sp *selParser) complex(relative bool) ([]Compound, [3]int, error) {
	var (
		compounds []Compound
		spec      [3]int
		comb      = None
	)
	sp.skipSpace()
	for {
		t, ok := sp.peek()
		if !ok || t.tt == css.CommaToken || t.tt == css.RightParenthesisToken {
			break
		}
		if c, isComb := combinatorOf(t); isComb {
			if (comb != None && comb != Descendant) || (len(compounds) == 0 && !relative) {
				return nil, spec, fmt.Errorf("unexpected combinator %q", t.data)
			}
			comb = c
			sp.pos++
			sp.skipSpace()
			continue
		}
		if len(compounds) > 0 && comb == None {
			return nil, spec, fmt.Errorf("unexpected %q", t.data)
		}
		c, cs, err := sp.compound()
		if err != nil {
			return nil, spec, err
		}
		c.Combinator = comb
		compounds = append(compounds, c)
		for i := range spec {
			spec[i] += cs[i]
		}
		comb = None
		if sp.skipSpace() {
			comb = Descendant
		}
	}
	if len(compounds) == 0 {
		return nil, spec, errors.New("empty selector")
	}
	if comb != None && comb != Descendant {
		return nil, spec, errors.New("dangling combinator")
	}
	return compounds, spec, nil
}

func (sp *selParser) compound() (Compound, [3]int, error) {
	var (
		c    Compound
		spec [3]int
		n    int
	)
	for {
		t, ok := sp.peek()
		if !ok {
			break
		}
		switch {
		case t.tt == css.IdentToken || (t.tt == css.DelimToken && t.data == "*"):
			if n > 0 {
				return c, spec, fmt.Errorf("type selector %q must come first", t.data)
			}
			sp.pos++
			name := t.data
			// namespace prefix "ns|tag"
			if nt, ok := sp.peek(); ok && nt.tt == css.DelimToken && nt.data == "|" {
				sp.pos++
				nt, ok = sp.peek()
				if !ok || !(nt.tt == css.IdentToken || (nt.tt == css.DelimToken && nt.data == "*")) {
					return c, spec, errors.New("bad namespace prefix")
				}
				sp.pos++
				name = nt.data
			}
			if name != "*" {
				c.Tag = strings.ToLower(Unescape(name))
				spec[2]++
			}

		case t.tt == css.DelimToken && t.data == ".":
			sp.pos++
			nt, ok := sp.peek()
			if !ok || nt.tt != css.IdentToken {
				return c, spec, errors.New("class name expected after '.'")
			}
			sp.pos++
			name := Unescape(nt.data)
			c.Classes = append(c.Classes, name)
			sp.entry.Classes = append(sp.entry.Classes, name)
			spec[1]++

		case t.tt == css.HashToken:
			sp.pos++
			name := Unescape(t.data[1:])
			c.IDs = append(c.IDs, name)
			sp.entry.IDs = append(sp.entry.IDs, name)
			spec[0]++

		case t.tt == css.LeftBracketToken:
			sp.pos++
			a, err := sp.attribute()
			if err != nil {
				return c, spec, err
			}
			c.Attributes = append(c.Attributes, a)
			switch a.Name {
			case "class":
				sp.entry.AttrClass = true
			case "id":
				sp.entry.AttrID = true
			}
			spec[1]++

		case t.tt == css.ColonToken:
			sp.pos++
			if err := sp.pseudo(&c, &spec); err != nil {
				return c, spec, err
			}

		default:
			if n == 0 {
				return c, spec, fmt.Errorf("unexpected %q", t.data)
			}
			return c, spec, nil
		}
		n++
		if c.PseudoElement != "" {
			// only pseudo-classes like :hover may follow pseudo-element
			if nt, ok := sp.peek(); ok && nt.tt != css.ColonToken {
				return c, spec, nil
			}
		}
	}
	return c, spec, nil
}

func (sp *selParser) attribute() (Attribute, error) {
	var a Attribute
	sp.skipSpace()
	t, ok := sp.peek()
	if !ok || t.tt != css.IdentToken {
		return a, errors.New("attribute name expected")
	}
	a.Name = strings.ToLower(Unescape(t.data))
	sp.pos++
	sp.skipSpace()

	t, ok = sp.peek()
	if !ok {
		return a, errors.New("unterminated attribute selector")
	}
	switch t.tt {
	case css.RightBracketToken:
		sp.pos++
		return a, nil
	case css.IncludeMatchToken, css.DashMatchToken, css.PrefixMatchToken, css.SuffixMatchToken, css.SubstringMatchToken:
		a.Op = t.data
	case css.DelimToken:
		if t.data != "=" {
			return a, fmt.Errorf("unexpected %q in attribute selector", t.data)
		}
		a.Op = "="
	default:
		return a, fmt.Errorf("unexpected %q in attribute selector", t.data)
	}
	sp.pos++
	sp.skipSpace()

	t, ok = sp.peek()
	if !ok || (t.tt != css.IdentToken && t.tt != css.StringToken) {
		return a, errors.New("attribute value expected")
	}
	a.Value = t.data
	if t.tt == css.StringToken && len(t.data) >= 2 {
		a.Value = t.data[1 : len(t.data)-1]
	} else {
		a.Value = Unescape(t.data)
	}
	sp.pos++
	sp.skipSpace()

	// optional case sensitivity flag
	if t, ok = sp.peek(); ok && t.tt == css.IdentToken {
		sp.pos++
		sp.skipSpace()
	}
	if t, ok = sp.peek(); !ok || t.tt != css.RightBracketToken {
		return a, errors.New("unterminated attribute selector")
	}
	sp.pos++
	return a, nil
}

func (sp *selParser) pseudo(c *Compound, spec *[3]int) error {
	element := false
	if t, ok := sp.peek(); ok && t.tt == css.ColonToken {
		element = true
		sp.pos++
	}
	t, ok := sp.peek()
	if !ok {
		return errors.New("pseudo-class name expected")
	}
	sp.pos++

	switch t.tt {
	case css.IdentToken:
		name := strings.ToLower(t.data)
		if element || legacyPseudoElements[name] {
			if c.PseudoElement != "" {
				return errors.New("more than one pseudo-element")
			}
			c.PseudoElement = name
			spec[2]++
			return nil
		}
		c.PseudoClasses = append(c.PseudoClasses, name)
		if statePseudoClasses[name] {
			sp.entry.Dynamic = true
		}
		spec[1]++
		return nil

	case css.FunctionToken:
		name := strings.ToLower(strings.TrimSuffix(t.data, "("))
		start := sp.pos
		if element {
			// ::part(), ::slotted(), ::highlight() - arguments are opaque
			if err := sp.skipArguments(); err != nil {
				return err
			}
			c.PseudoElement = name + "(" + render(sp.tokens[start:sp.pos-1]) + ")"
			spec[2]++
			return nil
		}
		argSpec, err := sp.functional(name)
		if err != nil {
			return err
		}
		c.PseudoClasses = append(c.PseudoClasses, name+"("+render(sp.tokens[start:sp.pos-1])+")")
		for i := range spec {
			spec[i] += argSpec[i]
		}
		return nil
	}
	return fmt.Errorf("unexpected %q after ':'", t.data)
}

// functional parses arguments of a functional pseudo-class and returns the
// specificity it contributes.
func (sp *selParser) functional(name string) ([3]int, error) {
	switch name {
	case "is", "matches", "any", "-webkit-any", "-moz-any", "not", "where", "has":
		var best [3]int
		for {
			_, spec, err := sp.complex(name == "has")
			if err != nil {
				return best, err
			}
			if less(best, spec) {
				best = spec
			}
			t, ok := sp.peek()
			if !ok {
				return best, errors.New("unterminated pseudo-class arguments")
			}
			sp.pos++
			if t.tt == css.RightParenthesisToken {
				break
			}
		}
		if name == "where" {
			return [3]int{}, nil
		}
		return best, nil
	}
	// nth-child(), lang(), dir() and the like
	if err := sp.skipArguments(); err != nil {
		return [3]int{}, err
	}
	return [3]int{0, 1, 0}, nil
}

// skipArguments moves past the closing parenthesis matching already
// consumed function token.
func (sp *selParser) skipArguments() error {
	depth := 1
	for sp.pos < len(sp.tokens) {
		t := sp.tokens[sp.pos]
		sp.pos++
		switch t.tt {
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
	return errors.New("unterminated pseudo-class arguments")
}

func less(a, b [3]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// RenameIdents rewrites class and id names in selector text. Callback
// receives unescaped names and returns replacement, returning the name
// unchanged keeps original spelling. Attribute selectors are left as is.
func RenameIdents(text string, fn func(id bool, name string) string) (string, error) {
	tokens, err := lex(text)
	if err != nil {
		return "", fmt.Errorf("malformed selector %q: %w", text, err)
	}
	var (
		sb       strings.Builder
		brackets int
	)
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		switch {
		case t.tt == css.LeftBracketToken:
			brackets++
		case t.tt == css.RightBracketToken:
			brackets--
		case brackets > 0:
		case t.tt == css.DelimToken && t.data == "." && i+1 < len(tokens) && tokens[i+1].tt == css.IdentToken:
			name := Unescape(tokens[i+1].data)
			sb.WriteByte('.')
			if repl := fn(false, name); repl != name {
				sb.WriteString(repl)
			} else {
				sb.WriteString(tokens[i+1].data)
			}
			i++
			continue
		case t.tt == css.HashToken:
			name := Unescape(t.data[1:])
			sb.WriteByte('#')
			if repl := fn(true, name); repl != name {
				sb.WriteString(repl)
			} else {
				sb.WriteString(t.data[1:])
			}
			continue
		}
		sb.WriteString(t.data)
	}
	return sb.String(), nil
}
