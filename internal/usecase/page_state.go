package usecase

import "sync"

// PageState is the ambient host state read when an entry is created: the
// current location and the identified user.
type PageState struct {
	mu          sync.RWMutex
	url         string
	userID      string
	userDetails map[string]any
	lastRouted  string
}

// NewPageState creates a PageState at the given location.
func NewPageState(url, userID string) *PageState {
	return &PageState{url: url, userID: userID, lastRouted: url}
}

func (p *PageState) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

func (p *PageState) UserID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userID
}

// SetUser replaces the user context. An empty id clears it.
func (p *PageState) SetUser(id string, details map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userID = id
	p.userDetails = details
}

// UserDetails returns a copy of the details passed to SetUser.
func (p *PageState) UserDetails() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.userDetails == nil {
		return nil
	}
	out := make(map[string]any, len(p.userDetails))
	for k, v := range p.userDetails {
		out[k] = v
	}
	return out
}

// Navigate moves to url and reports whether it differs from the last
// recorded route, so repeated notifications for one location are ignored.
func (p *PageState) Navigate(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	if url == p.lastRouted {
		return false
	}
	p.lastRouted = url
	return true
}
