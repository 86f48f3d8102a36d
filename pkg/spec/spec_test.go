// Package spec runs end-to-end shell scripts against the interpreter and
// checks their observable behavior: exit status and stdout.
package spec

import (
	"embed"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"src.elv.sh/pkg/must"
	"src.elv.sh/pkg/testutil"

	"github.com/reubeno/brush-sub004/pkg/interp"
)

//go:embed testdata
var testdata embed.FS

type specCase struct {
	name       string
	code       string
	wantStatus int
	wantStdout string
}

// Case files use a compact block format: "#### name" opens a case, the
// following lines are the script, "## status: N" sets the expected exit
// status (default 0), and an optional "## STDOUT:" ... "## END" block holds
// the expected output.
func parseSpecFile(text string) []specCase {
	var cases []specCase
	var cur specCase
	open := false
	flush := func() {
		if open {
			cases = append(cases, cur)
		}
	}
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "#### "):
			flush()
			cur = specCase{name: strings.TrimPrefix(line, "#### ")}
			open = true
		case strings.HasPrefix(line, "## status: "):
			cur.wantStatus = must.OK1(strconv.Atoi(strings.TrimPrefix(line, "## status: ")))
		case line == "## STDOUT:":
			var b strings.Builder
			for i++; i < len(lines) && lines[i] != "## END"; i++ {
				b.WriteString(lines[i])
				b.WriteString("\n")
			}
			cur.wantStdout = b.String()
		default:
			if open && !(line == "" && cur.code == "") {
				cur.code += line + "\n"
			}
		}
	}
	flush()
	return cases
}

func runCase(t *testing.T, c specCase) {
	t.Helper()
	testutil.InTempDir(t)

	stdin := must.OK1(os.Open(os.DevNull))
	defer stdin.Close()
	stderr := must.OK1(os.OpenFile(os.DevNull, os.O_WRONLY, 0))
	defer stderr.Close()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}

	in := interp.New([]string{"brush"}, []*os.File{stdin, w, stderr})
	status := in.Eval(c.code)
	in.WaitAll()
	in.OnExit()
	if exited, exitStatus := in.Exited(); exited {
		status = exitStatus
	}
	w.Close()
	stdout := string(must.OK1(io.ReadAll(r)))
	r.Close()

	if status != c.wantStatus {
		t.Errorf("status = %v, want %v", status, c.wantStatus)
	}
	if diff := cmp.Diff(c.wantStdout, stdout); diff != "" {
		t.Errorf("stdout (-want +got):\n%v", diff)
	}
}

func TestSpecFiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("spec scripts require a Unix userland")
	}
	entries := must.OK1(testdata.ReadDir("testdata"))
	for _, entry := range entries {
		name := entry.Name()
		t.Run(name, func(t *testing.T) {
			text := string(must.OK1(testdata.ReadFile("testdata/" + name)))
			for _, c := range parseSpecFile(text) {
				t.Run(c.name, func(t *testing.T) { runCase(t, c) })
			}
		})
	}
}
