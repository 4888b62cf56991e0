package sip

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultSessionTTL = 24 * time.Hour
	defaultCleanup    = time.Hour
)

// call is the state kept per Call-ID across frames.
type call struct {
	mu       sync.Mutex
	messages int
	offer    *sdpInfo // from INVITE
	answer   *sdpInfo // from the 2xx to INVITE
}

// callView is a snapshot of a call after one message was observed.
type callView struct {
	messages int
	offer    *sdpInfo
	answer   *sdpInfo
	ended    bool
}

// calls correlates messages of one dialog by Call-ID.
type calls struct {
	cache *cache.Cache
}

func newCalls(ttl time.Duration) *calls {
	cleanup := defaultCleanup
	if ttl < cleanup {
		cleanup = ttl
	}
	return &calls{cache: cache.New(ttl, cleanup)}
}

// observe records one message of the call and returns the call so far.
// BYE and CANCEL end the call and drop it from the table.
func (c *calls) observe(callID string, m *message) callView {
	cl := &call{}
	if err := c.cache.Add(callID, cl, cache.DefaultExpiration); err != nil {
		if v, ok := c.cache.Get(callID); ok {
			cl = v.(*call)
		}
	}

	cl.mu.Lock()
	cl.messages++
	switch {
	case m.method == "INVITE" && m.sdp != nil:
		cl.offer = m.sdp
	case m.status >= 200 && m.status < 300 && m.cseqMethod == "INVITE" && m.sdp != nil:
		cl.answer = m.sdp
	}
	view := callView{messages: cl.messages, offer: cl.offer, answer: cl.answer}
	cl.mu.Unlock()

	if m.method == "BYE" || m.method == "CANCEL" {
		c.cache.Delete(callID)
		view.ended = true
	}
	return view
}

func (c *calls) len() int { return c.cache.ItemCount() }
