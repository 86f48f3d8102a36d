package interp

import (
	"fmt"
	"sort"
	"strings"
)

type options uint32

// Options relevant to the execution engine. monitor gates job control,
// notify selects asynchronous job-state reporting, errexit feeds the ERR
// trap machinery. The rest are carried for set/+o compatibility.
const (
	allexport options = 1 << iota
	errexit
	monitor
	noexec
	notify
	nounset
	verbose
	xtrace
)

var optionByLetter = map[byte]options{
	'a': allexport,
	'e': errexit,
	'm': monitor,
	'n': noexec,
	'b': notify,
	'u': nounset,
	'v': verbose,
	'x': xtrace,
}

var optionByName = map[string]options{
	"allexport": allexport,
	"errexit":   errexit,
	"monitor":   monitor,
	"noexec":    noexec,
	"notify":    notify,
	"nounset":   nounset,
	"verbose":   verbose,
	"xtrace":    xtrace,
}

func (o options) has(bit options) bool {
	return o&bit != 0
}

func (o options) with(bit options, on bool) options {
	if on {
		return o | bit
	}
	return o &^ bit
}

// Used for printing options with "set -o" or "set +o". "set +o" prints
// commands that recreate the option state; "set -o" uses the tabular
// name/on/off format shared by bash, dash, ksh and zsh.
func (o options) format(asCommands bool) string {
	names := make([]string, 0, len(optionByName))
	for name := range optionByName {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		set := o.has(optionByName[name])
		var format string
		if asCommands {
			if set {
				format = "set -o %v\n"
			} else {
				format = "set +o %v\n"
			}
		} else {
			if set {
				format = "%-10v on\n"
			} else {
				format = "%-10v off\n"
			}
		}
		fmt.Fprintf(&sb, format, name)
	}
	return sb.String()
}
