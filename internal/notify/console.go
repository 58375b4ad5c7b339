package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ConsoleNotifier prints a banner with a terminal bell.
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleNotifier{out: out, now: time.Now}
}

func (c *ConsoleNotifier) Show(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bar := strings.Repeat("=", 50)
	fmt.Fprintf(c.out, "\a%s\n🔔 DeskPal 提醒\n%s\n时间: %s\n%s\n",
		bar, text, c.now().Format("2006-01-02 15:04:05"), bar)
}
