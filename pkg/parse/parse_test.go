package parse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, text string) *Program {
	t.Helper()
	p, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	return p
}

// words extracts the rendered words of the n-th stage of the first item's
// first pipeline, which is what most tests care about.
func stageWords(t *testing.T, p *Program, item, stage int) []string {
	t.Helper()
	cmd := p.Items[item].AndOr.Pipelines[0].Stages[stage].Cmd
	simple, ok := cmd.Data.(Simple)
	if !ok {
		t.Fatalf("stage %v is %T, want Simple", stage, cmd.Data)
	}
	var out []string
	for _, w := range simple.Words {
		out = append(out, wordText(w))
	}
	return out
}

func TestParseSimple(t *testing.T) {
	p := mustParse(t, "echo hello world")
	if len(p.Items) != 1 {
		t.Fatalf("got %v items, want 1", len(p.Items))
	}
	want := []string{"echo", "hello", "world"}
	if diff := cmp.Diff(want, stageWords(t, p, 0, 0)); diff != "" {
		t.Errorf("words (-want +got):\n%v", diff)
	}
}

func TestParseQuoting(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{`echo 'single quoted'`, []string{"echo", "single quoted"}},
		{`echo "double quoted"`, []string{"echo", "double quoted"}},
		{`echo es\ caped`, []string{"echo", "es caped"}},
		{`echo mixed'-'"parts"`, []string{"echo", "mixed-parts"}},
		{`echo "$x suffix"`, []string{"echo", "$x suffix"}},
	}
	for _, test := range tests {
		p := mustParse(t, test.text)
		if diff := cmp.Diff(test.want, stageWords(t, p, 0, 0)); diff != "" {
			t.Errorf("Parse(%q) words (-want +got):\n%v", test.text, diff)
		}
	}
}

func TestParseVariableReferences(t *testing.T) {
	p := mustParse(t, "echo $x ${y} $? $1")
	simple := p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data.(Simple)
	var vars []string
	for _, w := range simple.Words[1:] {
		if len(w.Parts) != 1 || w.Parts[0].Var == "" {
			t.Fatalf("word %v is not a single variable reference", wordText(w))
		}
		vars = append(vars, w.Parts[0].Var)
	}
	if diff := cmp.Diff([]string{"x", "y", "?", "1"}, vars); diff != "" {
		t.Errorf("variable names (-want +got):\n%v", diff)
	}
}

func TestParseSingleQuotesSuppressVars(t *testing.T) {
	p := mustParse(t, `echo '$x'`)
	simple := p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data.(Simple)
	w := simple.Words[1]
	if len(w.Parts) != 1 || w.Parts[0].Var != "" || w.Parts[0].Lit != "$x" {
		t.Errorf("'$x' parsed as %+v, want a literal $x", w.Parts)
	}
}

func TestParsePipelineShapes(t *testing.T) {
	p := mustParse(t, "a | b |& c")
	stages := p.Items[0].AndOr.Pipelines[0].Stages
	if len(stages) != 3 {
		t.Fatalf("got %v stages, want 3", len(stages))
	}
	if stages[0].PipeStderr {
		t.Errorf("stage 0 marked |&, want plain |")
	}
	if !stages[1].PipeStderr {
		t.Errorf("stage 1 not marked |&")
	}

	p = mustParse(t, "! time a | b")
	pp := p.Items[0].AndOr.Pipelines[0]
	if !pp.Bang || !pp.Timed {
		t.Errorf("Bang %v Timed %v, want both true", pp.Bang, pp.Timed)
	}
}

func TestParseAndOr(t *testing.T) {
	p := mustParse(t, "a && b || c")
	ao := p.Items[0].AndOr
	if len(ao.Pipelines) != 3 {
		t.Fatalf("got %v pipelines, want 3", len(ao.Pipelines))
	}
	if diff := cmp.Diff([]string{"&&", "||"}, ao.Ops); diff != "" {
		t.Errorf("ops (-want +got):\n%v", diff)
	}
}

func TestParseBackground(t *testing.T) {
	p := mustParse(t, "sleep 10 &\necho fg")
	if !p.Items[0].Background {
		t.Errorf("first item not marked background")
	}
	if p.Items[1].Background {
		t.Errorf("second item wrongly marked background")
	}
}

func TestParseCompounds(t *testing.T) {
	p := mustParse(t, "{ a; b; }")
	group, ok := p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data.(Group)
	if !ok {
		t.Fatalf("got %T, want Group", p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data)
	}
	if len(group.Body.Items) != 2 {
		t.Errorf("group has %v items, want 2", len(group.Body.Items))
	}

	p = mustParse(t, "(a)")
	if _, ok := p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data.(Subshell); !ok {
		t.Errorf("(a) did not parse as Subshell")
	}

	p = mustParse(t, "if a; then b; elif c; then d; else e; fi")
	ifData := p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data.(If)
	if len(ifData.Conds) != 2 || len(ifData.Bodies) != 2 || ifData.Else == nil {
		t.Errorf("if clause: %v conds, %v bodies, else %v", len(ifData.Conds), len(ifData.Bodies), ifData.Else != nil)
	}

	p = mustParse(t, "until a; do b; done")
	whileData := p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data.(While)
	if !whileData.Until {
		t.Errorf("until clause not marked Until")
	}

	p = mustParse(t, "for x in a b; do echo $x; done")
	forData := p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data.(For)
	if forData.Var != "x" || !forData.WordsSet || len(forData.Words) != 2 {
		t.Errorf("for clause: var %v wordsSet %v words %v", forData.Var, forData.WordsSet, len(forData.Words))
	}

	p = mustParse(t, "for x; do echo $x; done")
	forData = p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data.(For)
	if forData.WordsSet {
		t.Errorf("for without in wrongly has WordsSet")
	}
}

func TestParseFnDef(t *testing.T) {
	p := mustParse(t, "greet() { echo hi; }")
	fn, ok := p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data.(FnDef)
	if !ok {
		t.Fatalf("got %T, want FnDef", p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data)
	}
	if fn.Name != "greet" {
		t.Errorf("name = %v, want greet", fn.Name)
	}
	if _, ok := fn.Body.Data.(Group); !ok {
		t.Errorf("body is %T, want Group", fn.Body.Data)
	}
}

func TestParseAssignments(t *testing.T) {
	p := mustParse(t, "FOO=bar BAZ=$x cmd arg")
	simple := p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Data.(Simple)
	if len(simple.Assigns) != 2 {
		t.Fatalf("got %v assigns, want 2", len(simple.Assigns))
	}
	if simple.Assigns[0].Name != "FOO" || wordText(simple.Assigns[0].RHS) != "bar" {
		t.Errorf("first assign = %v=%v", simple.Assigns[0].Name, wordText(simple.Assigns[0].RHS))
	}
	if simple.Assigns[1].Name != "BAZ" || wordText(simple.Assigns[1].RHS) != "$x" {
		t.Errorf("second assign did not keep the variable reference")
	}
	if diff := cmp.Diff([]string{"cmd", "arg"}, stageWords(t, p, 0, 0)); diff != "" {
		t.Errorf("words (-want +got):\n%v", diff)
	}
}

func TestParseRedirections(t *testing.T) {
	tests := []struct {
		text   string
		wantFd int
		wantOp RedirOp
	}{
		{"cmd < in", -1, RedirInput},
		{"cmd > out", -1, RedirOutput},
		{"cmd >> out", -1, RedirAppend},
		{"cmd 2> err", 2, RedirOutput},
		{"cmd 2>&1", 2, RedirDupOut},
		{"cmd <&3", -1, RedirDupIn},
	}
	for _, test := range tests {
		p := mustParse(t, test.text)
		redirs := p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Redirs
		if len(redirs) != 1 {
			t.Fatalf("Parse(%q): got %v redirs, want 1", test.text, len(redirs))
		}
		rd := redirs[0]
		if rd.Fd != test.wantFd || rd.Op != test.wantOp {
			t.Errorf("Parse(%q): fd %v op %v, want fd %v op %v",
				test.text, rd.Fd, rd.Op, test.wantFd, test.wantOp)
		}
	}
}

func TestParseHeredoc(t *testing.T) {
	p := mustParse(t, "cat <<EOF\nline one\nline $x\nEOF\n")
	rd := p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Redirs[0]
	if rd.Op != RedirHeredoc {
		t.Fatalf("op = %v, want RedirHeredoc", rd.Op)
	}
	if got := wordText(rd.Heredoc); got != "line one\nline $x\n" {
		t.Errorf("heredoc body = %q, want %q", got, "line one\nline $x\n")
	}

	// A quoted delimiter suppresses expansion in the body.
	p = mustParse(t, "cat <<'EOF'\nliteral $x\nEOF\n")
	rd = p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Redirs[0]
	for _, part := range rd.Heredoc.Parts {
		if part.Var != "" {
			t.Errorf("quoted heredoc still contains variable reference %v", part.Var)
		}
	}

	// <<- strips leading tabs, including before the delimiter.
	p = mustParse(t, "cat <<-EOF\n\tbody\n\tEOF\n")
	rd = p.Items[0].AndOr.Pipelines[0].Stages[0].Cmd.Redirs[0]
	if got := wordText(rd.Heredoc); got != "body\n" {
		t.Errorf("<<- body = %q, want %q", got, "body\n")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"echo |",
		"if true; then echo",
		"for do done",
		"echo 'unterminated",
		"a &&",
		")",
	}
	for _, text := range tests {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", text)
		} else if _, ok := err.(Error); !ok {
			t.Errorf("Parse(%q) returned %T, want parse.Error", text, err)
		}
	}
}

func TestParseKeywordsOnlyStandalone(t *testing.T) {
	// Words that merely contain keyword characters stay words.
	p := mustParse(t, "echo if then fi")
	want := []string{"echo", "if", "then", "fi"}
	if diff := cmp.Diff(want, stageWords(t, p, 0, 0)); diff != "" {
		t.Errorf("keyword-looking arguments (-want +got):\n%v", diff)
	}
}
