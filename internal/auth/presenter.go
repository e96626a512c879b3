package auth

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/pkg/browser"
	"golang.org/x/term"
)

// Presenter shows the authorization URL to the user.
type Presenter interface {
	Present(authURL string)
}

// BrowserPresenter opens the authorization URL in the default browser and
// also prints it, so the user can copy it if the browser does not open.
type BrowserPresenter struct {
	Out    io.Writer
	Logger *slog.Logger

	// openURL defaults to browser.OpenURL.
	openURL func(string) error
}

// Present launches the browser without waiting for it.
func (p *BrowserPresenter) Present(authURL string) {
	if p.Out != nil {
		fmt.Fprintf(p.Out, "Opening browser for authentication...\nIf the browser does not open, visit:\n\n  %s\n\n", authURL)
	}

	open := p.openURL
	if open == nil {
		open = browser.OpenURL
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	go func() {
		if err := open(authURL); err != nil {
			logger.Debug("Failed to open browser", "error", err)
		}
	}()
}

// ConsolePresenter prints the authorization URL for headless environments.
type ConsolePresenter struct {
	Out io.Writer
}

// Present writes the URL and instructions.
func (p *ConsolePresenter) Present(authURL string) {
	out := p.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "Open this URL in a browser to authenticate:\n\n  %s\n\nWaiting for the authorization callback...\n", authURL)
}

// Environment is what SelectPresenter inspects to decide whether a browser
// can be opened.
type Environment struct {
	// Getenv defaults to os.Getenv.
	Getenv func(string) string

	// IsTerminal defaults to checking stdout.
	IsTerminal func() bool

	// GOOS defaults to runtime.GOOS.
	GOOS string
}

func (e Environment) withDefaults() Environment {
	if e.Getenv == nil {
		e.Getenv = os.Getenv
	}
	if e.IsTerminal == nil {
		e.IsTerminal = func() bool {
			return term.IsTerminal(int(os.Stdout.Fd()))
		}
	}
	if e.GOOS == "" {
		e.GOOS = runtime.GOOS
	}
	return e
}

// IsHeadless reports whether a browser cannot be expected: no terminal,
// a CI environment, or Linux without a display server.
func IsHeadless(env Environment) bool {
	env = env.withDefaults()

	if !env.IsTerminal() {
		return true
	}
	if env.Getenv("CI") != "" {
		return true
	}
	if env.GOOS == "linux" && env.Getenv("DISPLAY") == "" && env.Getenv("WAYLAND_DISPLAY") == "" {
		return true
	}
	return false
}

// SelectPresenter picks the console presenter in headless environments and
// the browser presenter otherwise.
func SelectPresenter(env Environment, out io.Writer, logger *slog.Logger) Presenter {
	if IsHeadless(env) {
		return &ConsolePresenter{Out: out}
	}
	return &BrowserPresenter{Out: out, Logger: logger}
}
