package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// splitCommand splits a configured command line on whitespace. Quoting is not
// supported; wrap complex invocations in a script.
func splitCommand(line string) []string {
	return strings.Fields(line)
}

// CommandNotifier spawns an external program with the text as its last
// argument and does not wait for it. If the program cannot be started the
// text goes to the fallback notifier.
type CommandNotifier struct {
	argv     []string
	fallback Notifier
	log      zerolog.Logger
}

func NewCommandNotifier(command string, fallback Notifier, log zerolog.Logger) *CommandNotifier {
	return &CommandNotifier{argv: splitCommand(command), fallback: fallback, log: log}
}

func (c *CommandNotifier) Show(text string) {
	if len(c.argv) == 0 {
		c.showFallback(text)
		return
	}
	args := append(append([]string(nil), c.argv[1:]...), text)
	cmd := exec.Command(c.argv[0], args...)
	if err := cmd.Start(); err != nil {
		c.log.Warn().Err(err).Str("command", c.argv[0]).Msg("Notification command failed to start")
		c.showFallback(text)
		return
	}
	// Reap in the background so the child does not linger as a zombie.
	go func() { _ = cmd.Wait() }()
}

func (c *CommandNotifier) showFallback(text string) {
	if c.fallback != nil {
		c.fallback.Show(text)
	}
}

// CommandSpeaker runs an external TTS program and waits for it to finish.
type CommandSpeaker struct {
	argv []string
}

func NewCommandSpeaker(command string) *CommandSpeaker {
	return &CommandSpeaker{argv: splitCommand(command)}
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if len(s.argv) == 0 {
		return fmt.Errorf("speak command not configured")
	}
	args := append(append([]string(nil), s.argv[1:]...), text)
	out, err := exec.CommandContext(ctx, s.argv[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("speak command failed: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
