package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync/atomic"
)

// runFunc executes an external command and waits for it.
type runFunc func(ctx context.Context, name string, args ...string) error

// DesktopNotifier posts notifications through the OS's built-in tools:
//   - Linux:   `notify-send` (libnotify), with a sound-file hint when set
//   - macOS:   `osascript -e 'display notification ...'`
//   - Windows: `msg.exe *`
type DesktopNotifier struct {
	// goos selects the command flavor.
	goos string
	// run executes the command.
	run runFunc
	// initialized is set by Initialize.
	initialized atomic.Bool
}

// NewDesktopNotifier creates a notifier for the running operating system.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{
		goos: runtime.GOOS,
		run:  runCommand,
	}
}

// Initialize checks the platform is supported.
func (n *DesktopNotifier) Initialize(_ context.Context, channel Channel) error {
	if _, _, err := buildCommand(n.goos, Message{Title: channel.Name}, channel); err != nil {
		return err
	}

	n.initialized.Store(true)

	return nil
}

// Show runs the platform command for the message.
func (n *DesktopNotifier) Show(ctx context.Context, msg Message, channel Channel) error {
	if !n.initialized.Load() {
		return ErrNotInitialized
	}

	name, args, err := buildCommand(n.goos, msg, channel)
	if err != nil {
		return err
	}

	if err = n.run(ctx, name, args...); err != nil {
		return fmt.Errorf("run %s: %w", name, err)
	}

	return nil
}

// buildCommand returns the command line that displays msg on goos.
func buildCommand(goos string, msg Message, channel Channel) (string, []string, error) {
	switch strings.ToLower(goos) {
	case "linux", "freebsd", "openbsd", "netbsd":
		args := []string{
			"--app-name=" + channel.Name,
			"--urgency=critical",
			"--category=" + channel.ID,
		}

		if msg.SoundPath != "" {
			args = append(args, "--hint=string:sound-file:"+msg.SoundPath)
		}

		// Titles starting with "-" must not be read as options.
		return "notify-send", append(args, "--", msg.Title, msg.Body), nil
	case "darwin":
		script := fmt.Sprintf(
			"display notification %s with title %s subtitle %s sound name \"default\"",
			appleScriptQuote(msg.Body),
			appleScriptQuote(msg.Title),
			appleScriptQuote(channel.Name),
		)

		return "osascript", []string{"-e", script}, nil
	case "windows":
		return "msg.exe", []string{"*", "/TIME:60", msg.Title + ": " + msg.Body}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
	}
}

// appleScriptQuote renders s as an AppleScript string literal.
func appleScriptQuote(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`)

	return `"` + replacer.Replace(s) + `"`
}

// runCommand executes name with args and waits for it to finish.
func runCommand(ctx context.Context, name string, args ...string) error {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil && len(output) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}

	return err
}
