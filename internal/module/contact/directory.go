package contact

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/simp-lee/gocontacts/internal/domain"
)

// DefaultDebounce is how long the search term must stay unchanged before a
// search request is issued.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrSuperseded is returned to a caller whose request was overtaken by a newer one.
	ErrSuperseded = errors.New("directory: superseded by a newer request")
	// ErrLoadMoreUnavailable is returned when there is nothing more to load or a fetch is in flight.
	ErrLoadMoreUnavailable = errors.New("directory: load more is unavailable")
	// ErrDirectoryClosed is returned once the directory has been closed.
	ErrDirectoryClosed = errors.New("directory: closed")
)

// Lister fetches one page of contacts.
type Lister interface {
	ListContacts(ctx context.Context, q domain.ListQuery) (*domain.ContactPage, error)
}

// DirectoryState is a point-in-time copy of a directory.
type DirectoryState struct {
	// Term is the raw search text, Search the settled term the list reflects.
	Term       string
	Search     string
	Page       int
	Contacts   []domain.Contact
	Pagination domain.Pagination
	HasMore    bool
	Loading    bool
	// BatchStart is the index in Contacts where the most recently loaded page begins.
	BatchStart int
	// Err is the error of the most recent completed fetch.
	Err error
}

// CanLoadMore reports whether "load more" is available.
func (s DirectoryState) CanLoadMore() bool {
	return s.HasMore && !s.Loading
}

// LastBatch returns the contacts of the most recently loaded page.
func (s DirectoryState) LastBatch() []domain.Contact {
	if s.BatchStart < 0 || s.BatchStart > len(s.Contacts) {
		return nil
	}
	return s.Contacts[s.BatchStart:]
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithDebounce overrides the search debounce window.
func WithDebounce(d time.Duration) DirectoryOption {
	return func(dir *Directory) {
		if d > 0 {
			dir.debounce = d
		}
	}
}

// WithDirectoryLogger sets the logger used for fetch failures and dropped responses.
func WithDirectoryLogger(l *slog.Logger) DirectoryOption {
	return func(dir *Directory) {
		if l != nil {
			dir.logger = l
		}
	}
}

// Directory is the paginated, debounced, search-filtered contact listing of
// one list view. Pages are accumulated: page 1 replaces the list and later
// pages append to it. Every fetch carries a generation number and only the
// latest generation's response is applied.
type Directory struct {
	lister   Lister
	debounce time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool

	term       string
	keystroke  uint64
	settled    uint64
	settledGen uint64
	timer      *time.Timer

	search     string
	page       int
	contacts   []domain.Contact
	pagination domain.Pagination
	hasMore    bool
	loading    bool
	batchStart int
	lastErr    error

	gen         uint64
	done        uint64
	cancelFetch context.CancelFunc

	changed chan struct{}
}

// NewDirectory creates an empty directory on page 1. Call Load to fetch the first page.
func NewDirectory(lister Lister, opts ...DirectoryOption) *Directory {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Directory{
		lister:   lister,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
		page:     1,
		changed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load sets the search term without debouncing and fetches page 1.
// It is used when a list view opens with a term already in its URL.
func (d *Directory) Load(ctx context.Context, term string) (DirectoryState, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return DirectoryState{}, ErrDirectoryClosed
	}
	d.stopTimerLocked()
	d.term = term
	d.search = term
	d.keystroke++
	d.settled = d.keystroke
	d.page = 1
	g := d.fetchLocked()
	d.settledGen = g
	d.mu.Unlock()

	return d.await(ctx, g)
}

// Type records a keystroke. The term is applied once it has been stable for
// the debounce window; applying a changed term resets the list to page 1.
// It returns the keystroke's sequence number.
func (d *Directory) Type(term string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return d.keystroke
	}

	d.term = term
	d.keystroke++
	k := d.keystroke
	d.stopTimerLocked()
	d.timer = time.AfterFunc(d.debounce, func() { d.settle(k) })
	d.broadcastLocked()
	return k
}

// Search records a keystroke and waits for its outcome. The caller whose
// keystroke settles receives the resulting state; callers overtaken by a
// later keystroke receive ErrSuperseded.
func (d *Directory) Search(ctx context.Context, term string) (DirectoryState, error) {
	k := d.Type(term)
	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return DirectoryState{}, ErrDirectoryClosed
		}
		if d.keystroke != k {
			d.mu.Unlock()
			return DirectoryState{}, ErrSuperseded
		}
		if d.settled == k {
			g := d.settledGen
			d.mu.Unlock()
			return d.await(ctx, g)
		}
		ch := d.changed
		d.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return DirectoryState{}, ctx.Err()
		}
	}
}

// LoadMore fetches the next page and appends it. It is available only when
// the server reported more pages and no fetch is in flight.
func (d *Directory) LoadMore(ctx context.Context) (DirectoryState, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return DirectoryState{}, ErrDirectoryClosed
	}
	if !d.hasMore || d.loading {
		d.mu.Unlock()
		return DirectoryState{}, ErrLoadMoreUnavailable
	}
	d.page++
	g := d.fetchLocked()
	d.mu.Unlock()

	return d.await(ctx, g)
}

// Snapshot returns the current state.
func (d *Directory) Snapshot() DirectoryState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Close stops the debounce timer, cancels any in-flight fetch and wakes all waiters.
func (d *Directory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.stopTimerLocked()
	d.cancel()
	d.broadcastLocked()
}

func (d *Directory) settle(k uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || k != d.keystroke {
		return
	}
	d.timer = nil
	d.settled = k
	// A failed fetch is retried even when the term is unchanged.
	if d.term != d.search || d.lastErr != nil {
		d.search = d.term
		d.page = 1
		d.fetchLocked()
	}
	d.settledGen = d.gen
	d.broadcastLocked()
}

// fetchLocked issues a request for the current page and search term.
// A still-running older request is cancelled; its response would be dropped anyway.
func (d *Directory) fetchLocked() uint64 {
	if d.cancelFetch != nil {
		d.cancelFetch()
	}
	d.gen++
	g := d.gen
	ctx, cancel := context.WithCancel(d.ctx)
	d.cancelFetch = cancel
	d.loading = true
	q := domain.ListQuery{Page: d.page, Query: d.search}
	d.broadcastLocked()

	go d.run(ctx, cancel, g, q)
	return g
}

func (d *Directory) run(ctx context.Context, cancel context.CancelFunc, g uint64, q domain.ListQuery) {
	page, err := d.lister.ListContacts(ctx, q)
	cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	if g != d.gen {
		d.logger.Debug("directory: dropped stale response",
			slog.Uint64("generation", g),
			slog.Uint64("latest", d.gen),
			slog.Int("page", q.Page),
		)
		return
	}

	d.cancelFetch = nil
	d.loading = false
	d.done = g

	if err != nil {
		d.lastErr = err
		// Keep the cursor on the last page actually loaded so a retry asks for the same page.
		if q.Page > 1 {
			d.page = q.Page - 1
		}
		d.logger.Warn("directory: list contacts failed",
			slog.Int("page", q.Page),
			slog.String("query", q.Query),
			slog.Any("error", err),
		)
		d.broadcastLocked()
		return
	}

	d.lastErr = nil
	var contacts []domain.Contact
	if page != nil {
		contacts = page.Contacts
		d.pagination = page.Pagination
	} else {
		d.pagination = domain.Pagination{Page: q.Page}
	}
	d.hasMore = d.pagination.HasMore

	if q.Page == 1 {
		d.contacts = slices.Clone(contacts)
		d.batchStart = 0
	} else {
		d.batchStart = len(d.contacts)
		d.contacts = append(d.contacts, contacts...)
	}
	d.broadcastLocked()
}

// await blocks until fetch generation g completes, is superseded, or ctx ends.
func (d *Directory) await(ctx context.Context, g uint64) (DirectoryState, error) {
	for {
		d.mu.Lock()
		if d.done == g {
			st := d.snapshotLocked()
			d.mu.Unlock()
			return st, st.Err
		}
		if d.closed {
			d.mu.Unlock()
			return DirectoryState{}, ErrDirectoryClosed
		}
		if d.gen != g {
			d.mu.Unlock()
			return DirectoryState{}, ErrSuperseded
		}
		ch := d.changed
		d.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return DirectoryState{}, ctx.Err()
		}
	}
}

func (d *Directory) snapshotLocked() DirectoryState {
	return DirectoryState{
		Term:       d.term,
		Search:     d.search,
		Page:       d.page,
		Contacts:   slices.Clone(d.contacts),
		Pagination: d.pagination,
		HasMore:    d.hasMore,
		Loading:    d.loading,
		BatchStart: d.batchStart,
		Err:        d.lastErr,
	}
}

func (d *Directory) broadcastLocked() {
	close(d.changed)
	d.changed = make(chan struct{})
}

func (d *Directory) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
