package interp

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/reubeno/brush-sub004/pkg/parse"
)

// The expansion performed here is the minimum the engine owes its callers:
// variable and special-parameter references inside already-tokenized words.
// Field splitting, globbing, command substitution and arithmetic belong to
// the expansion collaborator and never happen in this package.

func (fm *frame) expandWord(w *parse.Word) (string, error) {
	var b strings.Builder
	for _, part := range w.Parts {
		if part.Var == "" {
			b.WriteString(part.Lit)
			continue
		}
		value, err := fm.expandVar(part.Var)
		if err != nil {
			return "", err
		}
		b.WriteString(value)
	}
	return b.String(), nil
}

func (fm *frame) expandWords(ws []*parse.Word) ([]string, error) {
	argv := make([]string, 0, len(ws))
	for _, w := range ws {
		s, err := fm.expandWord(w)
		if err != nil {
			return nil, err
		}
		argv = append(argv, s)
	}
	return argv, nil
}

func (fm *frame) expandVar(name string) (string, error) {
	switch name {
	case "?":
		return strconv.Itoa(fm.exec.lastPipelineStatus), nil
	case "!":
		if fm.exec.lastBackgroundPid == 0 {
			return "", nil
		}
		return strconv.Itoa(fm.exec.lastBackgroundPid), nil
	case "$":
		return strconv.Itoa(os.Getpid()), nil
	case "#":
		return strconv.Itoa(len(fm.arguments) - 1), nil
	case "@", "*":
		return strings.Join(fm.arguments[1:], " "), nil
	case "-":
		letters := make([]byte, 0, 8)
		for letter, opt := range optionByLetter {
			if fm.options().has(opt) {
				letters = append(letters, letter)
			}
		}
		sort.Slice(letters, func(a, b int) bool { return letters[a] < letters[b] })
		return string(letters), nil
	}
	if i, err := strconv.Atoi(name); err == nil && i >= 0 {
		if i < len(fm.arguments) {
			return fm.arguments[i], nil
		}
		return "", nil
	}
	return fm.getVar(name)
}
