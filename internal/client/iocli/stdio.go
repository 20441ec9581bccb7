package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stream reads lines from in and writes to out. The reader is buffered once,
// so consecutive reads never lose input.
type Stream struct {
	in     *bufio.Reader
	out    io.Writer
	secret *os.File // secret is set when input is a terminal
}

// NewStdio binds the process stdin and stdout
func NewStdio() *Stream {
	s := NewStream(os.Stdin, os.Stdout)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		s.secret = os.Stdin
	}
	return s
}

// NewStream binds arbitrary input and output, e.g. a script file
func NewStream(in io.Reader, out io.Writer) *Stream {
	return &Stream{in: bufio.NewReader(in), out: out}
}

func (s *Stream) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stream) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stream) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// ReadLine prints prompt and returns the next line without surrounding
// spaces. io.EOF is returned once the input is exhausted.
func (s *Stream) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		s.Printf("%s", prompt)
	}
	line, err := s.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadSecret reads a line without echo when the input is a terminal
func (s *Stream) ReadSecret(prompt string) (string, error) {
	if s.secret == nil {
		return s.ReadLine(prompt)
	}
	s.Printf("%s", prompt)
	secret, err := term.ReadPassword(int(s.secret.Fd()))
	s.Println("")
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
