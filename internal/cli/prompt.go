package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

var (
	stdinOnce sync.Once
	stdin     *bufio.Reader
)

// stdinReader returns the process-wide buffered reader on os.Stdin. Prompts
// and the shell share it so no buffered input is lost between them.
func stdinReader() *bufio.Reader {
	stdinOnce.Do(func() { stdin = bufio.NewReader(os.Stdin) })
	return stdin
}

// promptLine prints label and reads one line. An empty answer yields def.
func promptLine(r *bufio.Reader, w io.Writer, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(w, "%s: ", label)
	}
	input, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return def, err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	return input, nil
}

// promptConfirm asks a yes/no question; anything but y or yes is no.
func promptConfirm(r *bufio.Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	input, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return false, err
	}
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes", nil
}

// promptSecret reads a secret without echo when in is a terminal, and a
// plain line otherwise.
func promptSecret(in *os.File, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	if term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
