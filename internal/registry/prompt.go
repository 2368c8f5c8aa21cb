package registry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Username and password entered for a registry.
type Credentials struct {
	Username string
	Password string
}

// Asks the operator for registry credentials.
type Prompter interface {
	Prompt(registry string) (Credentials, error)
}

// Prompts on the controlling terminal, reading the password without echo.
type TermPrompter struct {
	in  *os.File  // Terminal input.
	out io.Writer // Where prompts are written.
}

// Returns a [TermPrompter] for stdin, or nil when stdin is not a terminal.
func NewTermPrompter() *TermPrompter {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return &TermPrompter{in: os.Stdin, out: os.Stderr}
}

// Implements [Prompter]. An empty username means anonymous access.
func (p *TermPrompter) Prompt(registry string) (Credentials, error) {
	fmt.Fprintf(p.out, "Username for %s: ", registry)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return Credentials{}, err
	}

	user := strings.TrimSpace(line)
	if user == "" {
		return Credentials{}, nil
	}

	fmt.Fprintf(p.out, "Password for %s@%s: ", user, registry)
	pass, err := term.ReadPassword(int(p.in.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{Username: user, Password: string(pass)}, nil
}
