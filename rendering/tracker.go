package rendering

import (
	"time"

	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/plugin"
)

// State is the outcome of one item in a render pass. Items start Pending
// and end in one of the other states.
type State int

const (
	StatePending State = iota
	StateRendered
	StateFailed
	StateSkipped
	// StateMissing is reported for items that never reached another state,
	// typically because their concrete payload could not be loaded or their
	// plugin could not be resolved.
	StateMissing
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRendered:
		return "rendered"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	case StateMissing:
		return "missing"
	}
	return "unknown"
}

// Entry is one item of the tracker output.
type Entry struct {
	// Key is the item id, or a negative number for unsaved items.
	Key    int64
	Item   content.Item
	State  State
	Output content.Output
	// Err is the render error of a failed item, or the resolution error of
	// a missing item when its plugin is unknown.
	Err error
}

type result struct {
	state  State
	output content.Output
	err    error
}

// ResultTracker records the outcome of every item of one render pass, in
// the order the items were supplied. It is used by a single goroutine.
type ResultTracker struct {
	placeholder *content.Placeholder
	slot        string

	ordering  []int64
	items     map[int64]content.Item
	results   map[int64]result
	synthetic map[*content.Instance]int64
	nextKey   int64

	remaining          []content.Item
	remainingInstances []*content.Instance

	cacheable bool
	timeout   time.Duration
	redirect  *content.Redirect

	// filter rewrites every stored output.
	filter func(content.Output) content.Output
}

// NewResultTracker creates a tracker for a placeholder, nil for free item
// lists.
func NewResultTracker(placeholder *content.Placeholder) *ResultTracker {
	return &ResultTracker{
		placeholder: placeholder,
		slot:        content.SlotName(placeholder),
		items:       make(map[int64]content.Item),
		results:     make(map[int64]result),
		synthetic:   make(map[*content.Instance]int64),
		cacheable:   true,
	}
}

// newSearchTracker strips markup from every stored output and clears its
// cacheability.
func newSearchTracker(placeholder *content.Placeholder) *ResultTracker {
	t := NewResultTracker(placeholder)
	t.filter = func(o content.Output) content.Output {
		o.HTML = stripTags(o.HTML)
		o.Cacheable = false
		return o
	}
	return t
}

// Slot returns the placeholder slot name, or the global slot name.
func (t *ResultTracker) Slot() string {
	return t.slot
}

// Placeholder returns the placeholder being rendered, nil for free lists.
func (t *ResultTracker) Placeholder() *content.Placeholder {
	return t.placeholder
}

// AddOrdering registers the position of a base item in the final output.
func (t *ResultTracker) AddOrdering(item content.Item) int64 {
	key := item.ID
	if key == 0 {
		key = t.newSyntheticKey()
	}
	t.ordering = append(t.ordering, key)
	t.items[key] = item
	return key
}

// AddRemaining marks a base item as still needing a render.
func (t *ResultTracker) AddRemaining(item content.Item) {
	t.remaining = append(t.remaining, item)
}

// AddRemainingList registers concrete items that are rendered as-is, in
// order. Unsaved items get a synthetic key bound to the instance pointer.
func (t *ResultTracker) AddRemainingList(instances []*content.Instance) {
	for _, inst := range instances {
		if inst == nil {
			continue
		}
		key := t.keyOf(inst)
		t.ordering = append(t.ordering, key)
		t.items[key] = inst.Item
		t.remainingInstances = append(t.remainingInstances, inst)
	}
}

// Remaining returns the base items not satisfied from the cache.
func (t *ResultTracker) Remaining() []content.Item {
	return t.remaining
}

// SetRemainingInstances replaces the remaining base items with their
// concrete instances. Items the store could not upcast stay pending.
func (t *ResultTracker) SetRemainingInstances(instances []*content.Instance) {
	t.remaining = nil
	t.remainingInstances = append(t.remainingInstances, instances...)
}

// RemainingInstances returns the concrete items left to render.
func (t *ResultTracker) RemainingInstances() []*content.Instance {
	return t.remainingInstances
}

// StoreOutput records a rendered item.
func (t *ResultTracker) StoreOutput(inst *content.Instance, output content.Output) {
	if t.filter != nil {
		output = t.filter(output)
	}
	t.results[t.keyOf(inst)] = result{state: StateRendered, output: output}
}

// StoreException records a failed item. Other items are unaffected.
func (t *ResultTracker) StoreException(inst *content.Instance, err error) {
	t.results[t.keyOf(inst)] = result{state: StateFailed, err: err}
}

// SetSkipped records an item contributing nothing.
func (t *ResultTracker) SetSkipped(inst *content.Instance) {
	t.results[t.keyOf(inst)] = result{state: StateSkipped}
}

// SetUnresolved records why an item could not be rendered while leaving it
// in the missing state.
func (t *ResultTracker) SetUnresolved(inst *content.Instance, err error) {
	t.results[t.keyOf(inst)] = result{state: StateMissing, err: err}
}

// AddPluginTimeout folds a declared timeout into the running minimum.
// content.DefaultTimeout does not lower it.
func (t *ResultTracker) AddPluginTimeout(policy plugin.CachePolicy) {
	t.addTimeout(policy.Timeout)
}

// AddTimeout folds an explicit output timeout into the running minimum.
func (t *ResultTracker) AddTimeout(d time.Duration) {
	t.addTimeout(d)
}

func (t *ResultTracker) addTimeout(d time.Duration) {
	if d == content.DefaultTimeout {
		return
	}
	if t.timeout == content.DefaultTimeout || d < t.timeout {
		t.timeout = d
	}
}

// SetUncachable disqualifies the aggregate from caching for this pass.
// It cannot be undone.
func (t *ResultTracker) SetUncachable() {
	t.cacheable = false
}

// Cacheable reports whether the aggregate may be cached.
func (t *ResultTracker) Cacheable() bool {
	return t.cacheable
}

// Timeout returns the minimum declared timeout, or content.DefaultTimeout.
func (t *ResultTracker) Timeout() time.Duration {
	return t.timeout
}

// SetRedirect records a redirect request. The first one wins and the
// aggregate becomes uncachable.
func (t *ResultTracker) SetRedirect(r content.Redirect) {
	if t.redirect == nil {
		t.redirect = &r
	}
	t.SetUncachable()
}

// Redirect returns the recorded redirect, or nil.
func (t *ResultTracker) Redirect() *content.Redirect {
	return t.redirect
}

// Output returns the entries in their original order. Failed and skipped
// items are dropped unless includeExceptions is set; missing items are
// always reported.
func (t *ResultTracker) Output(includeExceptions bool) []Entry {
	out := make([]Entry, 0, len(t.ordering))
	for _, key := range t.ordering {
		e := Entry{Key: key, Item: t.items[key], State: StateMissing}
		if r, ok := t.results[key]; ok {
			e.State, e.Output, e.Err = r.state, r.output, r.err
		}
		if !includeExceptions && (e.State == StateFailed || e.State == StateSkipped) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (t *ResultTracker) keyOf(inst *content.Instance) int64 {
	if inst.ID != 0 {
		return inst.ID
	}
	if key, ok := t.synthetic[inst]; ok {
		return key
	}
	key := t.newSyntheticKey()
	t.synthetic[inst] = key
	return key
}

func (t *ResultTracker) newSyntheticKey() int64 {
	t.nextKey--
	return t.nextKey
}
