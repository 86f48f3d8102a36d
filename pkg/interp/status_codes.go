package interp

// Status codes returned by the shell itself.
//
// POSIX only fixes the codes for a command that is not executable, a command
// that is not found, and a command killed by a signal. The remaining
// shell-generated errors just need codes between 1 and 125. Bash uses 2 for
// both syntax errors and builtin usage errors, which we follow.
//
// 0 for success is universal enough that no constant is defined for it.
const (
	StatusFailure        = 1
	StatusSyntaxError    = 2
	StatusBadCommandLine = 2

	// Errors internal to the engine, with no counterpart in other shells.
	StatusPipeError        = 100
	StatusWaitError        = 101
	StatusWaitOther        = 102
	StatusShellBug         = 103
	StatusExpansionError   = 104
	StatusRedirectionError = 105

	// Specified by POSIX.
	StatusCommandNotExecutable = 126
	StatusCommandNotFound      = 127
	StatusSignalBase           = 128
)
