package parse

import (
	"fmt"
	"strings"
)

// PprintAST returns a compact one-line rendering of the tree, used by the
// front end's --print-ast flag.
func PprintAST(p *Program) string {
	var b strings.Builder
	pprintProgram(&b, p)
	return b.String()
}

func pprintProgram(b *strings.Builder, p *Program) {
	b.WriteString("(program")
	for _, it := range p.Items {
		b.WriteString(" ")
		pprintItem(b, it)
	}
	b.WriteString(")")
}

func pprintItem(b *strings.Builder, it *Item) {
	if it.Background {
		b.WriteString("(bg ")
	}
	for i, pp := range it.AndOr.Pipelines {
		if i > 0 {
			b.WriteString(" " + it.AndOr.Ops[i-1] + " ")
		}
		pprintPipeline(b, pp)
	}
	if it.Background {
		b.WriteString(")")
	}
}

func pprintPipeline(b *strings.Builder, pp *Pipeline) {
	if pp.Timed {
		b.WriteString("time ")
	}
	if pp.Bang {
		b.WriteString("! ")
	}
	for i, st := range pp.Stages {
		if i > 0 {
			if pp.Stages[i-1].PipeStderr {
				b.WriteString(" |& ")
			} else {
				b.WriteString(" | ")
			}
		}
		pprintCommand(b, st.Cmd)
	}
}

func pprintCommand(b *strings.Builder, c *Command) {
	switch data := c.Data.(type) {
	case Simple:
		words := make([]string, 0, len(data.Words))
		for _, a := range data.Assigns {
			words = append(words, a.Name+"="+wordText(a.RHS))
		}
		for _, w := range data.Words {
			words = append(words, wordText(w))
		}
		fmt.Fprintf(b, "(simple %v)", strings.Join(words, " "))
	case Group:
		b.WriteString("(group ")
		pprintProgram(b, data.Body)
		b.WriteString(")")
	case Subshell:
		b.WriteString("(subshell ")
		pprintProgram(b, data.Body)
		b.WriteString(")")
	case If:
		b.WriteString("(if)")
	case While:
		if data.Until {
			b.WriteString("(until)")
		} else {
			b.WriteString("(while)")
		}
	case For:
		fmt.Fprintf(b, "(for %v)", data.Var)
	case FnDef:
		fmt.Fprintf(b, "(fndef %v)", data.Name)
	default:
		fmt.Fprintf(b, "(unknown %T)", c.Data)
	}
	for range c.Redirs {
		b.WriteString(" (redir)")
	}
}
