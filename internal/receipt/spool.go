package receipt

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Spool holds rendered receipts until their print window fetches them.
// Each receipt is served once. Every owner has its own quota: an owner whose
// quota is used up is refused new receipts, like a browser refusing to open
// another pop-up, while other owners are unaffected.
type Spool struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]spooled
	pending map[string]int
}

type spooled struct {
	owner   string
	doc     Rendered
	expires time.Time
}

// NewSpool returns a spool keeping at most max receipts per owner, each for
// ttl.
func NewSpool(max int, ttl time.Duration) *Spool {
	if max < 1 {
		max = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Spool{max: max, ttl: ttl, now: time.Now, items: make(map[string]spooled), pending: make(map[string]int)}
}

// Put stores r for owner (a device id) and returns its id.
func (s *Spool) Put(owner string, r Rendered) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	if s.pending[owner] >= s.max {
		return "", ErrSurfaceUnavailable
	}
	id := uuid.NewString()
	s.items[id] = spooled{owner: owner, doc: r, expires: s.now().Add(s.ttl)}
	s.pending[owner]++
	return id, nil
}

// Take returns and removes the receipt id if it belongs to owner.
func (s *Spool) Take(owner, id string) (Rendered, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.owner != owner {
		return Rendered{}, false
	}
	s.dropLocked(id, it.owner)
	if !s.now().Before(it.expires) {
		return Rendered{}, false
	}
	return it.doc, true
}

// Len returns the number of receipts waiting, all owners together.
func (s *Spool) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Spool) sweepLocked() {
	now := s.now()
	for id, it := range s.items {
		if !now.Before(it.expires) {
			s.dropLocked(id, it.owner)
		}
	}
}

func (s *Spool) dropLocked(id, owner string) {
	delete(s.items, id)
	s.pending[owner]--
	if s.pending[owner] <= 0 {
		delete(s.pending, owner)
	}
}

// Service renders documents and spools them.
type Service struct {
	Printer Printer
	Spool   *Spool
}

// Issue renders d for owner and returns the spool id. Any failure is
// reported as ErrSurfaceUnavailable.
func (s *Service) Issue(owner string, d Document) (string, error) {
	if s == nil || s.Printer == nil || s.Spool == nil {
		return "", ErrSurfaceUnavailable
	}
	r, err := s.Printer.Render(d)
	if err != nil {
		return "", errors.Join(ErrSurfaceUnavailable, err)
	}
	return s.Spool.Put(owner, r)
}

// PrinterFor returns the printer of a configured format ("html" or "pdf").
func PrinterFor(format string) Printer {
	if format == "pdf" {
		return PDFPrinter{}
	}
	return HTMLPrinter{}
}
