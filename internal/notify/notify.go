// Package notify holds the single line of user-facing text shown under the
// canvas. Writes replace whatever was there.
package notify

// Channel is a last-write-wins message slot. It is only touched from the UI
// update loop.
type Channel struct {
	msg string
}

// New creates an empty channel.
func New() *Channel {
	return &Channel{}
}

// Set replaces the current message.
func (c *Channel) Set(msg string) {
	c.msg = msg
}

func (c *Channel) Clear() {
	c.Set("")
}

// Text returns the current message, or "" when nothing is shown.
func (c *Channel) Text() string {
	return c.msg
}
