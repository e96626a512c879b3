package auth

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fakeEnv(vars map[string]string, tty bool, goos string) Environment {
	return Environment{
		Getenv:     func(k string) string { return vars[k] },
		IsTerminal: func() bool { return tty },
		GOOS:       goos,
	}
}

func TestIsHeadless(t *testing.T) {
	tests := []struct {
		name string
		env  Environment
		want bool
	}{
		{"no terminal", fakeEnv(nil, false, "darwin"), true},
		{"CI set", fakeEnv(map[string]string{"CI": "true"}, true, "darwin"), true},
		{"linux without display", fakeEnv(nil, true, "linux"), true},
		{"linux with X11", fakeEnv(map[string]string{"DISPLAY": ":0"}, true, "linux"), false},
		{"linux with wayland", fakeEnv(map[string]string{"WAYLAND_DISPLAY": "wayland-0"}, true, "linux"), false},
		{"macOS terminal", fakeEnv(nil, true, "darwin"), false},
		{"windows terminal", fakeEnv(nil, true, "windows"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeadless(tt.env))
		})
	}
}

func TestSelectPresenter(t *testing.T) {
	headless := SelectPresenter(fakeEnv(map[string]string{"CI": "1"}, true, "darwin"), nil, nil)
	assert.IsType(t, &ConsolePresenter{}, headless)

	desktop := SelectPresenter(fakeEnv(nil, true, "darwin"), nil, nil)
	assert.IsType(t, &BrowserPresenter{}, desktop)
}

func TestConsolePresenter(t *testing.T) {
	var out bytes.Buffer
	p := &ConsolePresenter{Out: &out}

	p.Present("https://auth.example.com/authorize?x=1")

	assert.Contains(t, out.String(), "https://auth.example.com/authorize?x=1")
}

func TestBrowserPresenter_DoesNotBlock(t *testing.T) {
	var out bytes.Buffer
	opened := make(chan string, 1)
	release := make(chan struct{})

	p := &BrowserPresenter{
		Out: &out,
		openURL: func(u string) error {
			opened <- u
			<-release
			return errors.New("no browser")
		},
	}

	returned := make(chan struct{})
	go func() {
		p.Present("https://auth.example.com/authorize")
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Present blocked on the browser launch")
	}

	assert.Equal(t, "https://auth.example.com/authorize", <-opened)
	close(release)
	assert.Contains(t, out.String(), "https://auth.example.com/authorize")
}
