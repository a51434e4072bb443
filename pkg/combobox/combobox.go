package combobox

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultDebounce is the delay before a typed query is sent to the loader.
const DefaultDebounce = 300 * time.Millisecond

// Key is a navigation key.
type Key int

const (
	KeyArrowDown Key = iota
	KeyArrowUp
	KeyEnter
	KeyEscape
	KeyTab
)

// Config describes the options and behavior of a Combobox.
type Config[T any, V comparable] struct {
	// Options are the static options. Ignored when Loader is set.
	Options []T
	// Loader fetches options for a non-empty query.
	Loader func(ctx context.Context, query string) ([]T, error)

	Multiple bool
	Value    func(T) V
	Label    func(T) string
	// Group returns the group name of an option; "" is ungrouped.
	Group func(T) string

	Creatable bool
	OnCreate  func(ctx context.Context, label string) (T, error)

	DebounceTimeout time.Duration
	// OnChange is called after a remote result has been applied.
	OnChange func()
}

// Item is one row of the open list.
type Item[T any] struct {
	Option T
	Label  string
	Group  string
	// Create marks the trailing "create <query>" row.
	Create bool
}

// Group is a named run of options.
type Group[T any] struct {
	Name    string
	Options []T
}

// Combobox is safe for concurrent use.
type Combobox[T any, V comparable] struct {
	cfg Config[T, V]

	mu        sync.Mutex
	values    []V
	query     string
	open      bool
	highlight int
	loading   bool
	remote    []T
	gen       uint64
	timer     *time.Timer
}

// New creates a Combobox.
func New[T any, V comparable](cfg Config[T, V]) *Combobox[T, V] {
	if cfg.DebounceTimeout <= 0 {
		cfg.DebounceTimeout = DefaultDebounce
	}
	return &Combobox[T, V]{cfg: cfg}
}

// ErrNotCreatable is returned by Create when creation is off or the create
// row is not shown.
var ErrNotCreatable = errors.New("combobox: nothing to create")

// SetQuery updates the query, opens the list and resets the highlight. In
// remote mode a search is scheduled after the debounce timeout; an empty
// query clears the options without calling the loader.
func (c *Combobox[T, V]) SetQuery(ctx context.Context, q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
	c.open = true
	c.highlight = 0
	if c.cfg.Loader == nil {
		return
	}
	gen, ok := c.issueLocked(q)
	if !ok {
		return
	}
	c.timer = time.AfterFunc(c.cfg.DebounceTimeout, func() { c.load(ctx, gen, q) })
}

// Search sets the query and runs the remote search now, without debounce.
func (c *Combobox[T, V]) Search(ctx context.Context, q string) {
	c.mu.Lock()
	c.query = q
	c.open = true
	c.highlight = 0
	if c.cfg.Loader == nil {
		c.mu.Unlock()
		return
	}
	gen, ok := c.issueLocked(q)
	c.mu.Unlock()
	if ok {
		c.load(ctx, gen, q)
	}
}

// issueLocked starts a new search generation, cancelling any pending
// debounce. It reports false when q is blank and no load is needed.
func (c *Combobox[T, V]) issueLocked(q string) (uint64, bool) {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if strings.TrimSpace(q) == "" {
		c.remote = nil
		c.loading = false
		return c.gen, false
	}
	c.loading = true
	return c.gen, true
}

func (c *Combobox[T, V]) load(ctx context.Context, gen uint64, q string) {
	opts, err := c.cfg.Loader(ctx, q)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.loading = false
	if err != nil {
		c.remote = nil
	} else {
		c.remote = opts
	}
	c.highlight = 0
	c.mu.Unlock()

	if c.cfg.OnChange != nil {
		c.cfg.OnChange()
	}
}

// Query returns the current query.
func (c *Combobox[T, V]) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Loading reports whether a remote search is outstanding.
func (c *Combobox[T, V]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// IsOpen reports whether the list is open.
func (c *Combobox[T, V]) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Open opens the list.
func (c *Combobox[T, V]) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
}

// Close closes the list.
func (c *Combobox[T, V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

// Highlight returns the highlighted row index.
func (c *Combobox[T, V]) Highlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlight
}

// Values returns the selected values.
func (c *Combobox[T, V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]V(nil), c.values...)
}

// Selected returns the single selected value.
func (c *Combobox[T, V]) Selected() (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.values) == 0 {
		var zero V
		return zero, false
	}
	return c.values[0], true
}

// SetValue replaces the selection. Single mode keeps the first value.
func (c *Combobox[T, V]) SetValue(values ...V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cfg.Multiple && len(values) > 1 {
		values = values[:1]
	}
	c.values = append([]V(nil), values...)
}

// Clear drops the selection.
func (c *Combobox[T, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = nil
}

// Remove drops v from a multiple selection.
func (c *Combobox[T, V]) Remove(v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cfg.Multiple {
		return
	}
	c.values = without(c.values, v)
}

func without[V comparable](values []V, v V) []V {
	out := make([]V, 0, len(values))
	for _, x := range values {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// Select picks opt. Single mode replaces the value and closes the list;
// multiple mode toggles opt and keeps the list open. The query is cleared
// either way, which in remote mode drops the fetched options and any
// search still pending.
func (c *Combobox[T, V]) Select(opt T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectLocked(opt)
}

func (c *Combobox[T, V]) selectLocked(opt T) {
	v := c.cfg.Value(opt)
	if c.cfg.Multiple {
		if contains(c.values, v) {
			c.values = without(c.values, v)
		} else {
			c.values = append(c.values, v)
		}
	} else {
		c.values = []V{v}
		c.open = false
	}
	c.query = ""
	c.highlight = 0
	if c.cfg.Loader != nil {
		c.issueLocked("")
	}
}

func contains[V comparable](values []V, v V) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// Items returns the rows of the open list: ungrouped options first, then
// groups in first-seen order, then the create row when shown.
func (c *Combobox[T, V]) Items() []Item[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemsLocked()
}

// Groups returns the visible options grouped, ungrouped first under "".
func (c *Combobox[T, V]) Groups() []Group[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groupsLocked(c.filteredLocked())
}

// filteredLocked narrows the options, fetched ones included, to labels
// containing the query.
func (c *Combobox[T, V]) filteredLocked() []T {
	opts := c.cfg.Options
	if c.cfg.Loader != nil {
		opts = c.remote
	}
	needle := strings.ToLower(strings.TrimSpace(c.query))
	if needle == "" {
		return opts
	}
	out := make([]T, 0, len(opts))
	for _, o := range opts {
		if strings.Contains(strings.ToLower(c.cfg.Label(o)), needle) {
			out = append(out, o)
		}
	}
	return out
}

func (c *Combobox[T, V]) groupOf(o T) string {
	if c.cfg.Group == nil {
		return ""
	}
	return c.cfg.Group(o)
}

func (c *Combobox[T, V]) groupsLocked(opts []T) []Group[T] {
	var ungrouped []T
	var order []string
	byName := make(map[string][]T)
	for _, o := range opts {
		name := c.groupOf(o)
		if name == "" {
			ungrouped = append(ungrouped, o)
			continue
		}
		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] = append(byName[name], o)
	}
	out := make([]Group[T], 0, len(order)+1)
	if len(ungrouped) > 0 {
		out = append(out, Group[T]{Options: ungrouped})
	}
	for _, name := range order {
		out = append(out, Group[T]{Name: name, Options: byName[name]})
	}
	return out
}

func (c *Combobox[T, V]) itemsLocked() []Item[T] {
	opts := c.filteredLocked()
	items := make([]Item[T], 0, len(opts)+1)
	for _, g := range c.groupsLocked(opts) {
		for _, o := range g.Options {
			items = append(items, Item[T]{Option: o, Label: c.cfg.Label(o), Group: g.Name})
		}
	}
	if c.showCreateLocked(opts) {
		items = append(items, Item[T]{Label: strings.TrimSpace(c.query), Create: true})
	}
	return items
}

func (c *Combobox[T, V]) showCreateLocked(opts []T) bool {
	q := strings.TrimSpace(c.query)
	if !c.cfg.Creatable || q == "" {
		return false
	}
	for _, o := range opts {
		if strings.EqualFold(c.cfg.Label(o), q) {
			return false
		}
	}
	return true
}

// HandleKey applies a navigation key. Enter on the create row calls
// Create and returns its error.
func (c *Combobox[T, V]) HandleKey(ctx context.Context, k Key) error {
	c.mu.Lock()
	if !c.open {
		if k == KeyArrowDown || k == KeyEnter {
			c.open = true
		}
		c.mu.Unlock()
		return nil
	}

	items := c.itemsLocked()
	switch k {
	case KeyArrowDown:
		if c.highlight < len(items)-1 {
			c.highlight++
		}
	case KeyArrowUp:
		if c.highlight > 0 {
			c.highlight--
		}
	case KeyEscape, KeyTab:
		c.open = false
	case KeyEnter:
		if c.highlight >= len(items) {
			break
		}
		item := items[c.highlight]
		if item.Create {
			c.mu.Unlock()
			return c.Create(ctx)
		}
		c.selectLocked(item.Option)
	}
	c.mu.Unlock()
	return nil
}

// Create adds an option labelled with the trimmed query through OnCreate
// and selects it.
func (c *Combobox[T, V]) Create(ctx context.Context) error {
	c.mu.Lock()
	label := strings.TrimSpace(c.query)
	ok := c.cfg.OnCreate != nil && c.showCreateLocked(c.filteredLocked())
	c.mu.Unlock()
	if !ok {
		return ErrNotCreatable
	}

	opt, err := c.cfg.OnCreate(ctx, label)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Loader == nil {
		c.cfg.Options = append(slices.Clip(c.cfg.Options), opt)
	}
	c.selectLocked(opt)
	return nil
}
