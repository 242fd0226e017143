// Package terminal holds what the client commands share: building the
// runtime from config and talking to the user on a terminal.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/pmaschool/authcore/internal/infrastructure/config"
	"github.com/pmaschool/authcore/internal/infrastructure/platform"
	"github.com/pmaschool/authcore/internal/interfaces/app"
	"github.com/pmaschool/authcore/internal/interfaces/messages"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

// Alerter prints the session-expired alert. A terminal has nothing to
// dismiss, so the alert is acknowledged once printed.
type Alerter struct {
	mu      sync.Mutex
	out     io.Writer
	printer *messages.Printer
}

func NewAlerter(out io.Writer) *Alerter {
	return &Alerter{out: out}
}

func (a *Alerter) SetPrinter(p *messages.Printer) {
	a.mu.Lock()
	a.printer = p
	a.mu.Unlock()
}

func (a *Alerter) ShowSessionExpired(ack func()) {
	a.mu.Lock()
	p := a.printer
	a.mu.Unlock()

	msg := "Your session has expired. Please log in again."
	if p != nil {
		msg = p.Sprintf(messages.KeySessionExpired)
	}
	fmt.Fprintln(a.out, msg)
	ack()
}

// Open loads configuration, initializes logging and builds a ready client.
func Open(ctx context.Context, configPath string) (*app.Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	alerter := NewAlerter(os.Stderr)
	platformName := platform.Resolve(cfg.Device.Platform)
	c, err := app.New(ctx, cfg, app.Options{
		Prompter: platform.NewTerminalPrompter(platformName, cfg.Biometric, os.Stdin, os.Stderr),
		Metadata: platform.NewHostSource(platformName),
		Alerter:  alerter,
	}, log)
	if err != nil {
		return nil, err
	}
	alerter.SetPrinter(c.Messages)
	c.Readiness.Set(true)
	return c, nil
}

// ReadPassword prompts on out and reads a line from in, hiding the input when
// in is a terminal.
func ReadPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PrintYAML writes v as a yaml document.
func PrintYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// ReportedError is an error already shown to the user.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string { return e.Err.Error() }

func (e *ReportedError) Unwrap() error { return e.Err }

// Fail renders err for the user. Silent errors produce no output.
func Fail(out io.Writer, p *messages.Printer, err error) error {
	if msg := p.Error(err); msg != "" {
		fmt.Fprintln(out, msg)
	}
	return &ReportedError{Err: err}
}
