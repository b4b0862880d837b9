// Package prompt collects the operator decisions the setup cannot make on
// its own.
//
// Answers are read once and validated once; a bad answer is returned as
// ErrInvalidSelection instead of re-prompting, so piped input cannot loop
// forever. The NonInteractive prompter takes the first option everywhere.
package prompt
