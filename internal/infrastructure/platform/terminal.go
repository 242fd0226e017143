package platform

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	appbiometric "github.com/pmaschool/authcore/internal/application/biometric"
	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/shared/config"
)

// Platform failure strings the gate classifies.
const (
	errUserCancel = "user_cancel"
	errLockout    = "lockout"
	errNoMatch    = "authentication_failed"
)

// TerminalPrompter stands in for a biometric sensor on a terminal: the sensor
// "matches" when the configured PIN is typed. Repeated misses lock it out for
// the rest of the process, as a real sensor would.
type TerminalPrompter struct {
	platform    string
	kinds       []biometric.Kind
	pin         string
	maxAttempts int

	in  *os.File
	out io.Writer

	isTerminal func(fd int) bool
	readSecret func(fd int) ([]byte, error)

	mu       sync.Mutex
	failures int
}

func NewTerminalPrompter(platform string, cfg config.BiometricConfig, in *os.File, out io.Writer) *TerminalPrompter {
	kinds := make([]biometric.Kind, 0, len(cfg.Kinds))
	for _, k := range cfg.Kinds {
		kinds = append(kinds, biometric.Kind(k))
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &TerminalPrompter{
		platform:    platform,
		kinds:       kinds,
		pin:         cfg.SensorPIN,
		maxAttempts: maxAttempts,
		in:          in,
		out:         out,
		isTerminal:  term.IsTerminal,
		readSecret:  term.ReadPassword,
	}
}

var _ appbiometric.Prompter = (*TerminalPrompter)(nil)

func (p *TerminalPrompter) Platform() string {
	return p.platform
}

func (p *TerminalPrompter) Capabilities(ctx context.Context) (appbiometric.Capabilities, error) {
	if err := ctx.Err(); err != nil {
		return appbiometric.Capabilities{}, err
	}
	return appbiometric.Capabilities{
		HasHardware: len(p.kinds) > 0 && p.isTerminal(int(p.in.Fd())),
		IsEnrolled:  p.pin != "",
		Kinds:       p.kinds,
	}, nil
}

type readResult struct {
	input string
	err   error
}

// Prompt blocks until a line is read or ctx is done. A pending read is
// abandoned, not interrupted, when ctx ends first.
func (p *TerminalPrompter) Prompt(ctx context.Context, cfg biometric.PromptConfig) (appbiometric.PromptResult, error) {
	p.mu.Lock()
	locked := p.failures >= p.maxAttempts
	p.mu.Unlock()
	if locked {
		return appbiometric.PromptResult{Error: errLockout}, nil
	}

	cancel := cfg.CancelLabel
	if cancel == "" {
		cancel = "cancel"
	}
	fmt.Fprintf(p.out, "%s\n(enter the sensor PIN, or type %q) ", cfg.PromptMessage, strings.ToLower(cancel))

	done := make(chan readResult, 1)
	go func() {
		input, err := p.read()
		done <- readResult{input: input, err: err}
	}()

	var res readResult
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return appbiometric.PromptResult{}, ctx.Err()
	case res = <-done:
	}
	fmt.Fprintln(p.out)

	switch {
	case errors.Is(res.err, io.EOF):
		return appbiometric.PromptResult{}, nil
	case res.err != nil:
		return appbiometric.PromptResult{}, fmt.Errorf("read sensor input: %w", res.err)
	case strings.EqualFold(res.input, cancel) || strings.EqualFold(res.input, "cancel"):
		return appbiometric.PromptResult{Error: errUserCancel}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pin != "" && subtle.ConstantTimeCompare([]byte(res.input), []byte(p.pin)) == 1 {
		p.failures = 0
		return appbiometric.PromptResult{Success: true}, nil
	}
	p.failures++
	if p.failures >= p.maxAttempts {
		return appbiometric.PromptResult{Error: errLockout}, nil
	}
	return appbiometric.PromptResult{Error: errNoMatch}, nil
}

// read hides input on a terminal and reads a plain line otherwise.
func (p *TerminalPrompter) read() (string, error) {
	fd := int(p.in.Fd())
	if p.isTerminal(fd) {
		b, err := p.readSecret(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
