// Package reveal implements the character-by-character presentation of an
// assistant reply. It is purely cosmetic: the stored message is always
// complete before a stream starts, and a stream never mutates state.
package reveal

import (
	"context"
	"time"
)

// Stream emits text rune by rune on the returned channel, one rune per
// interval. The channel is closed when the text is exhausted or ctx is
// canceled, so an abandoned reveal stops immediately. A non-positive
// interval emits everything without delay.
func Stream(ctx context.Context, text string, interval time.Duration) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		var ticker *time.Ticker
		if interval > 0 {
			ticker = time.NewTicker(interval)
			defer ticker.Stop()
		}

		for _, r := range text {
			if ticker != nil {
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- string(r):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
