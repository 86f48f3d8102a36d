package interp

import (
	"src.elv.sh/pkg/getopt"
)

type parsedOpts map[byte]string

func (p parsedOpts) isSet(b byte) bool {
	_, ok := p[b]
	return ok
}

// A wrapper around [getopt.Parse] for the short options used by the builtin
// commands here (jobs -lp, kill -s, trap -lp and friends). A ':' after a
// letter in optstring marks an option taking an argument, as in the C
// function of the same name.
func (fm *frame) getopt(args []string, optstring string) (parsedOpts, []string, bool) {
	var specs []*getopt.OptionSpec
	for i := 0; i < len(optstring); i++ {
		spec := &getopt.OptionSpec{Short: rune(optstring[i])}
		if i+1 < len(optstring) && optstring[i+1] == ':' {
			spec.Arity = getopt.RequiredArgument
			i++
		}
		specs = append(specs, spec)
	}
	// BSD style (options before operands), following POSIX guideline 9 and
	// the majority of dash, ksh and zsh.
	opts, args, err := getopt.Parse(args, specs, getopt.BSD)
	if err != nil {
		fm.badCommandLine("%v", err)
		return parsedOpts{}, nil, false
	}
	parsed := make(parsedOpts, len(opts))
	for _, opt := range opts {
		parsed[byte(opt.Spec.Short)] = opt.Argument
	}
	return parsed, args, true
}
