package mysql

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// PasswordEnv overrides any password given on the command line.
const PasswordEnv = "MYSQL_PWD"

// PasswordSource describes where a password may come from.
type PasswordSource struct {
	Env     string // value of MYSQL_PWD; empty means unset
	Flag    string // value given to --password
	FlagSet bool   // --password was given, with or without a value
}

// Prompter reads a password interactively.
type Prompter func() (string, error)

// ResolvePassword picks the password for a run: a non-empty MYSQL_PWD first, then the
// --password value, then a prompt when --password was given without a value.
// With none of those the password is empty and prompt is never called.
func ResolvePassword(src PasswordSource, prompt Prompter) (string, error) {
	switch {
	case src.Env != "":
		return src.Env, nil
	case src.FlagSet && src.Flag != "":
		return src.Flag, nil
	case src.FlagSet:
		if prompt == nil {
			return "", fmt.Errorf("password requested but no prompt available")
		}
		return prompt()
	default:
		return "", nil
	}
}

// PasswordSourceFromEnv fills the environment half of a PasswordSource.
func PasswordSourceFromEnv(flag string, flagSet bool) PasswordSource {
	return PasswordSource{Env: os.Getenv(PasswordEnv), Flag: flag, FlagSet: flagSet}
}

// PromptPassword reads a password from the terminal without echoing. The
// prompt goes to stderr so stdout stays pure SQL.
func PromptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}
