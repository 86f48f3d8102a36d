package parse

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse parses source text into a resolved command tree.
//
// The grammar is the executable subset the interpreter consumes: simple
// commands, pipelines with the !, time and |& modifiers, and-or lists,
// sequential and background separators, brace groups, subshells,
// if/while/until/for, function definitions, and redirections including
// heredocs. Word internals are limited to quoting and $-references; field
// splitting, globbing and the remaining expansions belong to the expansion
// layer and never appear in this tree.
func Parse(text string) (p *Program, err error) {
	ps := &parser{text: text}
	defer func() {
		if r := recover(); r != nil {
			if perr, ok := r.(Error); ok {
				p, err = nil, perr
				return
			}
			panic(r)
		}
	}()
	prog := ps.program()
	ps.skipNewlines()
	if !ps.atToken(tokEOF) {
		ps.fail("unexpected %v", ps.peek().describe())
	}
	return prog, nil
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNewline
	tokWord
	tokOp    // ; & && || | |& ( ) { } !
	tokRedir // [n]< [n]> [n]>> [n]<& [n]>& [n]<< [n]<<-
)

type token struct {
	kind tokenKind
	pos  int
	op   string // for tokOp
	word *Word  // for tokWord
	bare bool   // word is a single unquoted literal

	fd        int     // for tokRedir, -1 if not written
	redirOp   RedirOp // for tokRedir
	hdQuoted  bool    // heredoc delimiter was quoted
	hdStrip   bool    // <<- form: strip leading tabs
	hdDelim   string  // heredoc delimiter
}

func (t *token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "newline"
	case tokWord:
		return fmt.Sprintf("word %q", wordText(t.word))
	case tokRedir:
		return "redirection"
	default:
		return fmt.Sprintf("%q", t.op)
	}
}

func wordText(w *Word) string {
	var b strings.Builder
	for _, p := range w.Parts {
		if p.Var != "" {
			b.WriteString("$" + p.Var)
		} else {
			b.WriteString(p.Lit)
		}
	}
	return b.String()
}

type pendingHeredoc struct {
	redir     *Redir
	delim     string
	quoted    bool
	stripTabs bool
}

type parser struct {
	text string
	pos  int

	tok      *token
	heredocs []pendingHeredoc
}

func (ps *parser) fail(format string, args ...any) {
	panic(Error{ps.pos, fmt.Sprintf(format, args...)})
}

// Lexer.

const metachars = " \t\n|&;()<>"

func (ps *parser) rest() string { return ps.text[ps.pos:] }

func (ps *parser) peek() *token {
	if ps.tok == nil {
		ps.tok = ps.lex()
	}
	return ps.tok
}

func (ps *parser) next() *token {
	t := ps.peek()
	ps.tok = nil
	return t
}

func (ps *parser) atToken(k tokenKind) bool { return ps.peek().kind == k }

func (ps *parser) atOp(ops ...string) bool {
	t := ps.peek()
	if t.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if t.op == op {
			return true
		}
	}
	return false
}

// atKeyword reports whether the next token is the given unquoted literal
// word. Keywords are only recognized in command position, which the grammar
// methods ensure by where they call this.
func (ps *parser) atKeyword(kw string) bool {
	t := ps.peek()
	return t.kind == tokWord && t.bare && t.word.Parts[0].Lit == kw
}

func (ps *parser) expectKeyword(kw string) {
	if !ps.atKeyword(kw) {
		ps.fail("expected %q, got %v", kw, ps.peek().describe())
	}
	ps.next()
}

func (ps *parser) expectOp(op string) {
	if !ps.atOp(op) {
		ps.fail("expected %q, got %v", op, ps.peek().describe())
	}
	ps.next()
}

func (ps *parser) lex() *token {
	// Skip inline whitespace, line continuations and comments.
	for {
		r := ps.rest()
		switch {
		case strings.HasPrefix(r, "\\\n"):
			ps.pos += 2
		case r != "" && (r[0] == ' ' || r[0] == '\t' || r[0] == '\r'):
			ps.pos++
		case r != "" && r[0] == '#':
			i := strings.IndexByte(r, '\n')
			if i < 0 {
				ps.pos = len(ps.text)
			} else {
				ps.pos += i
			}
		default:
			goto skipped
		}
	}
skipped:
	start := ps.pos
	r := ps.rest()
	if r == "" {
		return &token{kind: tokEOF, pos: start}
	}
	if r[0] == '\n' {
		ps.pos++
		ps.readHeredocBodies()
		return &token{kind: tokNewline, pos: start}
	}
	for _, op := range []string{"&&", "||", "|&", ";", "&", "|", "(", ")", "{", "}", "!"} {
		if op == "{" || op == "}" || op == "!" {
			// Brace group delimiters and ! are words unless they stand
			// alone, so require a following metacharacter or EOF.
			if strings.HasPrefix(r, op) && (len(r) == 1 || strings.ContainsRune(metachars, rune(r[1]))) {
				ps.pos++
				return &token{kind: tokOp, pos: start, op: op}
			}
			continue
		}
		if strings.HasPrefix(r, op) {
			ps.pos += len(op)
			return &token{kind: tokOp, pos: start, op: op}
		}
	}
	// Redirection, possibly with a numeric fd prefix.
	fd := -1
	i := 0
	for i < len(r) && r[i] >= '0' && r[i] <= '9' {
		i++
	}
	if i < len(r) && (r[i] == '<' || r[i] == '>') {
		if i > 0 {
			fd, _ = strconv.Atoi(r[:i])
			ps.pos += i
		}
		return ps.lexRedir(start, fd)
	}
	return ps.lexWord(start)
}

func (ps *parser) lexRedir(start, fd int) *token {
	r := ps.rest()
	t := &token{kind: tokRedir, pos: start, fd: fd}
	switch {
	case strings.HasPrefix(r, "<<-"):
		t.redirOp = RedirHeredoc
		ps.pos += 3
		ps.lexHeredocDelim(t, true)
	case strings.HasPrefix(r, "<<"):
		t.redirOp = RedirHeredoc
		ps.pos += 2
		ps.lexHeredocDelim(t, false)
	case strings.HasPrefix(r, "<&"):
		t.redirOp = RedirDupIn
		ps.pos += 2
	case strings.HasPrefix(r, ">>"):
		t.redirOp = RedirAppend
		ps.pos += 2
	case strings.HasPrefix(r, ">&"):
		t.redirOp = RedirDupOut
		ps.pos += 2
	case r[0] == '<':
		t.redirOp = RedirInput
		ps.pos++
	default:
		t.redirOp = RedirOutput
		ps.pos++
	}
	return t
}

// lexHeredocDelim reads the delimiter word right after << or <<-. The body
// itself is read after the next newline token.
func (ps *parser) lexHeredocDelim(t *token, stripTabs bool) {
	for ps.rest() != "" && (ps.rest()[0] == ' ' || ps.rest()[0] == '\t') {
		ps.pos++
	}
	w := ps.lexWord(ps.pos)
	if w.kind != tokWord {
		ps.fail("heredoc delimiter missing")
	}
	var b strings.Builder
	for _, p := range w.word.Parts {
		if p.Var != "" {
			ps.fail("heredoc delimiter must be literal")
		}
		b.WriteString(p.Lit)
	}
	t.hdDelim = b.String()
	t.hdQuoted = !w.bare
	if stripTabs {
		t.hdStrip = true
	}
}

// readHeredocBodies consumes heredoc bodies pending at a newline, in the
// order their leaders appeared.
func (ps *parser) readHeredocBodies() {
	for _, hd := range ps.heredocs {
		var body strings.Builder
		for {
			if ps.rest() == "" {
				ps.fail("heredoc %q not terminated", hd.delim)
			}
			line := ps.rest()
			nl := strings.IndexByte(line, '\n')
			if nl >= 0 {
				line = line[:nl]
				ps.pos += nl + 1
			} else {
				ps.pos = len(ps.text)
			}
			if hd.stripTabs {
				line = strings.TrimLeft(line, "\t")
			}
			if line == hd.delim {
				break
			}
			body.WriteString(line)
			body.WriteString("\n")
		}
		w := &Word{pos: pos(hd.redir.Position())}
		if hd.quoted {
			w.Parts = []WordPart{{Lit: body.String()}}
		} else {
			w.Parts = scanDollarParts(body.String())
		}
		hd.redir.Heredoc = w
	}
	ps.heredocs = nil
}

func (ps *parser) lexWord(start int) *token {
	var parts []WordPart
	bare := true
	var lit strings.Builder
	flushLit := func() {
		if lit.Len() > 0 {
			parts = append(parts, WordPart{Lit: lit.String()})
			lit.Reset()
		}
	}
	for {
		r := ps.rest()
		if r == "" || strings.ContainsRune(metachars, rune(r[0])) {
			break
		}
		switch r[0] {
		case '\\':
			bare = false
			if len(r) == 1 {
				ps.pos++
				break
			}
			if r[1] == '\n' {
				ps.pos += 2
				continue
			}
			lit.WriteByte(r[1])
			ps.pos += 2
		case '\'':
			bare = false
			end := strings.IndexByte(r[1:], '\'')
			if end < 0 {
				ps.fail("unterminated single-quoted string")
			}
			lit.WriteString(r[1 : 1+end])
			ps.pos += end + 2
		case '"':
			bare = false
			ps.pos++
			ps.lexDoubleQuoted(&parts, &lit, flushLit)
		case '$':
			bare = false
			flushLit()
			parts = append(parts, ps.lexDollar())
		default:
			lit.WriteByte(r[0])
			ps.pos++
		}
	}
	flushLit()
	if len(parts) == 0 {
		if ps.pos == start {
			ps.fail("word expected")
		}
		// Only quotes were seen: an empty word.
		parts = []WordPart{{Lit: ""}}
	}
	bare = bare && len(parts) == 1 && parts[0].Var == ""
	return &token{
		kind: tokWord,
		pos:  start,
		word: &Word{pos: pos(start), Parts: parts},
		bare: bare,
	}
}

func (ps *parser) lexDoubleQuoted(parts *[]WordPart, lit *strings.Builder, flushLit func()) {
	for {
		r := ps.rest()
		if r == "" {
			ps.fail("unterminated double-quoted string")
		}
		switch r[0] {
		case '"':
			ps.pos++
			return
		case '\\':
			if len(r) >= 2 && strings.ContainsRune(`"$\`+"\n", rune(r[1])) {
				if r[1] != '\n' {
					lit.WriteByte(r[1])
				}
				ps.pos += 2
			} else {
				lit.WriteByte('\\')
				ps.pos++
			}
		case '$':
			flushLit()
			*parts = append(*parts, ps.lexDollar())
		default:
			lit.WriteByte(r[0])
			ps.pos++
		}
	}
}

// lexDollar reads a $-reference with the leading $ still present.
func (ps *parser) lexDollar() WordPart {
	ps.pos++ // $
	r := ps.rest()
	if r == "" {
		return WordPart{Lit: "$"}
	}
	if r[0] == '{' {
		end := strings.IndexByte(r, '}')
		if end < 0 {
			ps.fail("unterminated ${")
		}
		name := r[1:end]
		ps.pos += end + 1
		return WordPart{Var: name}
	}
	if isSpecialParam(r[0]) {
		ps.pos++
		return WordPart{Var: string(r[0])}
	}
	i := 0
	for i < len(r) && isNameByte(r[i], i == 0) {
		i++
	}
	if i == 0 {
		return WordPart{Lit: "$"}
	}
	name := r[:i]
	ps.pos += i
	return WordPart{Var: name}
}

func isSpecialParam(b byte) bool {
	switch b {
	case '?', '!', '$', '#', '@', '*', '-':
		return true
	}
	return b >= '0' && b <= '9'
}

func isNameByte(b byte, first bool) bool {
	if b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') {
		return true
	}
	return !first && b >= '0' && b <= '9'
}

// scanDollarParts splits a raw string (a heredoc body) into literal and
// variable parts the same way word lexing does.
func scanDollarParts(s string) []WordPart {
	sub := &parser{text: s}
	var parts []WordPart
	var lit strings.Builder
	for sub.pos < len(sub.text) {
		if sub.text[sub.pos] == '$' {
			p := sub.lexDollar()
			if p.Var == "" {
				lit.WriteString(p.Lit)
				continue
			}
			if lit.Len() > 0 {
				parts = append(parts, WordPart{Lit: lit.String()})
				lit.Reset()
			}
			parts = append(parts, p)
			continue
		}
		lit.WriteByte(sub.text[sub.pos])
		sub.pos++
	}
	if lit.Len() > 0 || len(parts) == 0 {
		parts = append(parts, WordPart{Lit: lit.String()})
	}
	return parts
}

// Grammar.

func (ps *parser) skipNewlines() {
	for ps.atToken(tokNewline) {
		ps.next()
	}
}

var bodyStoppers = map[string]bool{
	"then": true, "elif": true, "else": true, "fi": true,
	"do": true, "done": true,
}

func (ps *parser) atProgramEnd() bool {
	t := ps.peek()
	switch t.kind {
	case tokEOF:
		return true
	case tokOp:
		return t.op == ")" || t.op == "}"
	case tokWord:
		return t.bare && bodyStoppers[t.word.Parts[0].Lit]
	}
	return false
}

func (ps *parser) program() *Program {
	ps.skipNewlines()
	prog := &Program{pos: pos(ps.peek().pos)}
	for !ps.atProgramEnd() {
		prog.Items = append(prog.Items, ps.item())
		ps.skipNewlines()
	}
	return prog
}

func (ps *parser) item() *Item {
	it := &Item{pos: pos(ps.peek().pos)}
	it.AndOr = ps.andOr()
	switch {
	case ps.atOp("&"):
		ps.next()
		it.Background = true
	case ps.atOp(";"):
		ps.next()
	}
	return it
}

func (ps *parser) andOr() *AndOr {
	ao := &AndOr{pos: pos(ps.peek().pos)}
	ao.Pipelines = append(ao.Pipelines, ps.pipeline())
	for ps.atOp("&&", "||") {
		ao.Ops = append(ao.Ops, ps.next().op)
		ps.skipNewlines()
		ao.Pipelines = append(ao.Pipelines, ps.pipeline())
	}
	return ao
}

func (ps *parser) pipeline() *Pipeline {
	pp := &Pipeline{pos: pos(ps.peek().pos)}
	for {
		if ps.atKeyword("time") && !pp.Timed {
			ps.next()
			pp.Timed = true
			continue
		}
		if ps.atOp("!") && !pp.Bang {
			ps.next()
			pp.Bang = true
			continue
		}
		break
	}
	pp.Stages = append(pp.Stages, &Stage{Cmd: ps.command()})
	for ps.atOp("|", "|&") {
		op := ps.next().op
		pp.Stages[len(pp.Stages)-1].PipeStderr = op == "|&"
		ps.skipNewlines()
		pp.Stages = append(pp.Stages, &Stage{Cmd: ps.command()})
	}
	return pp
}

func (ps *parser) command() *Command {
	c := &Command{pos: pos(ps.peek().pos)}
	switch {
	case ps.atOp("("):
		ps.next()
		c.Data = Subshell{Body: ps.program()}
		ps.expectOp(")")
	case ps.atOp("{"):
		ps.next()
		c.Data = Group{Body: ps.program()}
		ps.expectOp("}")
	case ps.atKeyword("if"):
		c.Data = ps.ifClause()
	case ps.atKeyword("while"):
		c.Data = ps.whileUntilClause(false)
	case ps.atKeyword("until"):
		c.Data = ps.whileUntilClause(true)
	case ps.atKeyword("for"):
		c.Data = ps.forClause()
	default:
		return ps.simpleOrFnDef(c)
	}
	ps.trailingRedirs(c)
	return c
}

func (ps *parser) trailingRedirs(c *Command) {
	for ps.atToken(tokRedir) {
		c.Redirs = append(c.Redirs, ps.redir())
	}
}

func (ps *parser) redir() *Redir {
	t := ps.next()
	rd := &Redir{pos: pos(t.pos), Fd: t.fd, Op: t.redirOp}
	if t.redirOp == RedirHeredoc {
		ps.heredocs = append(ps.heredocs, pendingHeredoc{
			redir:     rd,
			delim:     t.hdDelim,
			quoted:    t.hdQuoted,
			stripTabs: t.hdStrip,
		})
		return rd
	}
	w := ps.peek()
	if w.kind != tokWord {
		ps.fail("redirection target missing, got %v", w.describe())
	}
	ps.next()
	rd.Target = w.word
	return rd
}

func (ps *parser) ifClause() If {
	ps.expectKeyword("if")
	data := If{}
	data.Conds = append(data.Conds, ps.program())
	ps.expectKeyword("then")
	data.Bodies = append(data.Bodies, ps.program())
	for ps.atKeyword("elif") {
		ps.next()
		data.Conds = append(data.Conds, ps.program())
		ps.expectKeyword("then")
		data.Bodies = append(data.Bodies, ps.program())
	}
	if ps.atKeyword("else") {
		ps.next()
		data.Else = ps.program()
	}
	ps.expectKeyword("fi")
	return data
}

func (ps *parser) whileUntilClause(until bool) While {
	ps.next() // while or until
	data := While{Until: until}
	data.Cond = ps.program()
	ps.expectKeyword("do")
	data.Body = ps.program()
	ps.expectKeyword("done")
	return data
}

func (ps *parser) forClause() For {
	ps.expectKeyword("for")
	t := ps.peek()
	if t.kind != tokWord || !t.bare {
		ps.fail("for: variable name expected, got %v", t.describe())
	}
	ps.next()
	data := For{Var: t.word.Parts[0].Lit}
	if ps.atKeyword("in") {
		ps.next()
		data.WordsSet = true
		for ps.atToken(tokWord) {
			data.Words = append(data.Words, ps.next().word)
		}
	}
	if ps.atOp(";") {
		ps.next()
	}
	ps.skipNewlines()
	ps.expectKeyword("do")
	data.Body = ps.program()
	ps.expectKeyword("done")
	return data
}

func (ps *parser) simpleOrFnDef(c *Command) *Command {
	data := Simple{}
	// Assignment prefix.
	for ps.atToken(tokWord) {
		name, rhs, ok := splitAssign(ps.peek().word)
		if !ok {
			break
		}
		ps.next()
		data.Assigns = append(data.Assigns, &Assign{Name: name, RHS: rhs})
	}
	for {
		switch {
		case ps.atToken(tokWord):
			w := ps.next().word
			// name() { ... } function definition form.
			if len(data.Words) == 0 && len(data.Assigns) == 0 && ps.atOp("(") && isName(wordText(w)) {
				ps.next()
				ps.expectOp(")")
				ps.skipNewlines()
				c.Data = FnDef{Name: wordText(w), Body: ps.command()}
				return c
			}
			data.Words = append(data.Words, w)
		case ps.atToken(tokRedir):
			c.Redirs = append(c.Redirs, ps.redir())
		default:
			if len(data.Words) == 0 && len(data.Assigns) == 0 && len(c.Redirs) == 0 {
				ps.fail("command expected, got %v", ps.peek().describe())
			}
			c.Data = data
			return c
		}
	}
}

// splitAssign splits a word of the form NAME=rest into the name and the
// remainder. The = must appear in the word's first literal part.
func splitAssign(w *Word) (string, *Word, bool) {
	if len(w.Parts) == 0 || w.Parts[0].Var != "" {
		return "", nil, false
	}
	name, rest, found := strings.Cut(w.Parts[0].Lit, "=")
	if !found || !isName(name) {
		return "", nil, false
	}
	rhs := &Word{pos: w.pos, Parts: append([]WordPart{{Lit: rest}}, w.Parts[1:]...)}
	return name, rhs, true
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i], i == 0) {
			return false
		}
	}
	return true
}
