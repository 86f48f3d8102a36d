package interp

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/reubeno/brush-sub004/pkg/parse"
)

// applyRedir performs one redirection against the frame's own file table.
// Callers that must keep redirections scoped clone the table first; the
// returned cleanup closes files this call opened (never inherited or
// duplicated descriptors) and may be nil.
func (fm *frame) applyRedir(rd *parse.Redir) (int, func()) {
	var flag, defaultDst int
	switch rd.Op {
	case parse.RedirInput:
		flag = os.O_RDONLY
		defaultDst = 0
	case parse.RedirOutput:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		defaultDst = 1
	case parse.RedirAppend:
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		defaultDst = 1
	case parse.RedirDupIn:
		defaultDst = 0
	case parse.RedirDupOut:
		defaultDst = 1
	case parse.RedirHeredoc:
		defaultDst = 0
	default:
		fm.diag(rd, "bug: unknown redir op: %v", rd.Op)
		return StatusShellBug, nil
	}
	dst := rd.Fd
	if dst == -1 {
		dst = defaultDst
	}

	var src *os.File
	var cleanup func()
	switch rd.Op {
	case parse.RedirHeredoc:
		r, w, err := os.Pipe()
		if err != nil {
			fm.diag(rd, "unable to create pipe for heredoc: %v", err)
			return StatusPipeError, nil
		}
		text, err := fm.expandWord(rd.Heredoc)
		if err != nil {
			r.Close()
			w.Close()
			fm.diag(rd, "%v", err)
			return StatusExpansionError, nil
		}
		go func() {
			w.WriteString(text)
			w.Close()
		}()
		src = r
		cleanup = func() { r.Close() }
	case parse.RedirDupIn, parse.RedirDupOut:
		right, err := fm.expandWord(rd.Target)
		if err != nil {
			fm.diag(rd, "%v", err)
			return StatusExpansionError, nil
		}
		if right == "-" {
			// [n]>&- and [n]<&- close the descriptor without touching the
			// endpoint, which other contexts may still reference.
			fm.files = fm.files.set(dst, nil)
			return 0, nil
		}
		fd64, err := strconv.ParseInt(right, 10, 0)
		if err != nil {
			fm.diag(rd, "dup source is not a descriptor: %v", right)
			return StatusRedirectionError, nil
		}
		src = fm.files.get(int(fd64))
		if src == nil {
			fm.diag(rd, "descriptor %v is not open", right)
			return StatusRedirectionError, nil
		}
	default:
		right, err := fm.expandWord(rd.Target)
		if err != nil {
			fm.diag(rd, "%v", err)
			return StatusExpansionError, nil
		}
		if !filepath.IsAbs(right) {
			// cd is tracked per context, not via process chdir, so relative
			// targets resolve against the frame's directory.
			right = filepath.Join(*fm.cwd, right)
		}
		f, err := os.OpenFile(right, flag, 0o644)
		if err != nil {
			fm.diag(rd, "can't open redirection target: %v", err)
			return StatusRedirectionError, nil
		}
		src = f
		cleanup = func() { f.Close() }
	}
	fm.files = fm.files.set(dst, src)
	return 0, cleanup
}

// applyRedirs applies a redirection list in order, accumulating cleanups.
func (fm *frame) applyRedirs(rds []*parse.Redir) (int, func()) {
	var cleanups []func()
	cleanupAll := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	for _, rd := range rds {
		status, cleanup := fm.applyRedir(rd)
		if cleanup != nil {
			cleanups = append(cleanups, cleanup)
		}
		if status != 0 {
			return status, cleanupAll
		}
	}
	return 0, cleanupAll
}
