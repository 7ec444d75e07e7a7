package wtlist

import "github.com/Refinitiv/Real-Time-SDK-sub030/rdm"

// fakeChannel is a minimal rdm.Channel double for tests that never
// actually need to move bytes, only to observe Write calls and to report
// a fixed Multicast/MaxFragmentSize.
type fakeChannel struct {
	multicast   bool
	maxFragSize int
	writes      [][]byte
	writeErr    error
	registered  []string
}

func (c *fakeChannel) Write(buf []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, buf)
	return nil
}

func (c *fakeChannel) MaxFragmentSize() int { return c.maxFragSize }
func (c *fakeChannel) Multicast() bool      { return c.multicast }
func (c *fakeChannel) RegisterAttrib(key string) { c.registered = append(c.registered, key) }

var _ rdm.Channel = (*fakeChannel)(nil)
