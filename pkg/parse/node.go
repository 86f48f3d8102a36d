package parse

// The resolved command tree consumed by the interpreter. The tree
// distinguishes simple commands, pipelines (with their bang and time
// modifiers) and redirection lists; everything below the word level is left
// to expansion at execution time.

type Node interface {
	Position() int
}

type pos int

func (p pos) Position() int { return int(p) }

// Program is a sequence of list items, each optionally backgrounded.
type Program struct {
	pos
	Items []*Item
}

// Item is one and-or list followed by ";" , "&" or a newline.
type Item struct {
	pos
	AndOr      *AndOr
	Background bool
}

// AndOr is a sequence of pipelines joined by && and ||. Ops[i] joins
// Pipelines[i] and Pipelines[i+1] and is either "&&" or "||".
type AndOr struct {
	pos
	Pipelines []*Pipeline
	Ops       []string
}

// Pipeline is an ordered command sequence with the pipeline modifiers.
type Pipeline struct {
	pos
	Bang   bool // leading !
	Timed  bool // leading time
	Stages []*Stage
}

// Stage is one pipeline element. PipeStderr records that the stage was
// followed by |& rather than |, so its stderr joins the pipe as well.
type Stage struct {
	Cmd        *Command
	PipeStderr bool
}

// Command is any command form plus its redirection list.
type Command struct {
	pos
	Redirs []*Redir
	Data   any // one of Simple, Group, Subshell, If, While, For, FnDef
}

// Simple is a simple command: assignment prefix plus words. Words[0], after
// expansion, names the command.
type Simple struct {
	Assigns []*Assign
	Words   []*Word
}

type Assign struct {
	Name string
	RHS  *Word
}

// Group is a brace group, executed in the current context.
type Group struct {
	Body *Program
}

// Subshell is a parenthesized group, executed in a cloned context.
type Subshell struct {
	Body *Program
}

type If struct {
	Conds  []*Program
	Bodies []*Program
	Else   *Program // nil if no else branch
}

type While struct {
	Until bool // until instead of while
	Cond  *Program
	Body  *Program
}

type For struct {
	Var      string
	Words    []*Word // nil means "in $@"
	WordsSet bool    // distinguishes "for x;" from "for x in;"
	Body     *Program
}

type FnDef struct {
	Name string
	Body *Command
}

// Word is a sequence of parts. Quoting has already been resolved; variable
// references are kept structured for the expansion step.
type Word struct {
	pos
	Parts []WordPart
}

// WordPart is either a literal (Var == "") or a variable reference. Quoted
// literals and barewords are not distinguished: the interpreter performs no
// field splitting.
type WordPart struct {
	Lit string
	Var string
}

type RedirOp uint8

const (
	RedirInput   RedirOp = iota // <
	RedirOutput                 // >
	RedirAppend                 // >>
	RedirDupIn                  // <&
	RedirDupOut                 // >&
	RedirHeredoc                // << and <<-
)

type Redir struct {
	pos
	Fd      int // left-hand fd, -1 if not written
	Op      RedirOp
	Target  *Word // nil for heredocs
	Heredoc *Word // body, one part per line chunk
}
