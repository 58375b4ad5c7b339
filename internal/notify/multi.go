package notify

import "context"

// MultiPush fans a push out to every channel. It reports success if any
// channel delivered.
type MultiPush []PushChannel

func (m MultiPush) Send(ctx context.Context, title, body string) bool {
	delivered := false
	for _, ch := range m {
		if ch != nil && ch.Send(ctx, title, body) {
			delivered = true
		}
	}
	return delivered
}
