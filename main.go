package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/reubeno/brush-sub004/pkg/interp"
	"github.com/reubeno/brush-sub004/pkg/parse"
)

var (
	printAST    bool
	commandText string
	proclogPath string
)

func main() {
	root := &cobra.Command{
		Use:           "brush [script [arg ...]]",
		Short:         "A POSIX shell built around faithful process execution and job control",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().BoolVar(&printAST, "print-ast", false, "print the syntax tree of each chunk before running it")
	root.Flags().StringVarP(&commandText, "command", "c", "", "run this string instead of reading a script")
	root.Flags().StringVar(&proclogPath, "proclog", "", "append one JSON line per process lifecycle event to this file")
	// Flags after the script name belong to the script.
	root.Flags().SetInterspersed(false)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(interp.StatusBadCommandLine)
	}
}

func run(cmd *cobra.Command, args []string) error {
	shellArgs := []string{"brush"}
	if commandText == "" && len(args) > 0 {
		shellArgs = args
	} else {
		shellArgs = append(shellArgs, args...)
	}
	in := interp.New(shellArgs, []*os.File{os.Stdin, os.Stdout, os.Stderr})

	if proclogPath != "" {
		f, err := os.OpenFile(proclogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		in.SetNotifier(interp.NewJSONLinesNotifier(f))
	}

	var status int
	switch {
	case commandText != "":
		status = evalChunk(in, commandText)
	case len(args) > 0:
		buf, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		status = evalChunk(in, string(buf))
	case isatty.IsTerminal(os.Stdin.Fd()):
		status = repl(in)
	default:
		buf, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		status = evalChunk(in, string(buf))
	}

	in.OnExit()
	if exited, exitStatus := in.Exited(); exited {
		status = exitStatus
	}
	os.Exit(status)
	return nil
}

func evalChunk(in *interp.Interp, code string) int {
	n, err := parse.Parse(code)
	if err != nil {
		fmt.Fprintln(os.Stderr, "syntax error:", err)
		return interp.StatusSyntaxError
	}
	if printAST {
		fmt.Println(parse.PprintAST(n))
	}
	return in.EvalProgram(n)
}

func repl(in *interp.Interp) int {
	in.EnableJobControl()
	jobNote := color.New(color.FgCyan)
	stdin := bufio.NewReader(os.Stdin)
	status := 0
	for {
		for _, line := range in.CheckForCompletedJobs() {
			jobNote.Fprintln(os.Stderr, line)
		}
		fmt.Fprint(os.Stderr, prompt(status))
		input, err := stdin.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				fmt.Fprintln(os.Stderr, err)
			}
			break
		}
		status = evalChunk(in, input)
		if exited, exitStatus := in.Exited(); exited {
			return exitStatus
		}
	}
	return status
}

func prompt(status int) string {
	if status != 0 {
		return fmt.Sprintf("[%d] $ ", status)
	}
	return "$ "
}
