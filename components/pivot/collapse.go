package pivot

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Phase is the lifecycle position of a collapsible prefix.
type Phase int

const (
	PhaseExpanded Phase = iota
	PhaseCollapsing
	PhaseCollapsed
	PhaseExpanding
)

func (p Phase) String() string {
	switch p {
	case PhaseCollapsing:
		return "collapsing"
	case PhaseCollapsed:
		return "collapsed"
	case PhaseExpanding:
		return "expanding"
	default:
		return "expanded"
	}
}

// Animation is the transient effect applied to a leaf during a transition.
type Animation string

const (
	AnimNone     Animation = ""
	AnimRollUp   Animation = "roll-up"
	AnimRollDown Animation = "roll-down"
	AnimRollOut  Animation = "roll-out"
	AnimRollIn   Animation = "roll-in"
)

const (
	// DefaultAnimationDuration is used when no duration is configured.
	DefaultAnimationDuration = 250 * time.Millisecond
	minAnimationDuration     = 220 * time.Millisecond
	maxAnimationDuration     = 280 * time.Millisecond
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks after a delay. time.AfterFunc satisfies it via
// RealScheduler; tests inject a manual clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules callbacks with the runtime timer.
type RealScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ClampAnimationDuration keeps transition durations within the supported window.
func ClampAnimationDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultAnimationDuration
	}
	if d < minAnimationDuration {
		return minAnimationDuration
	}
	if d > maxAnimationDuration {
		return maxAnimationDuration
	}
	return d
}

type prefixState struct {
	phase Phase
	gen   uint64
	timer Timer
}

type leafAnimation struct {
	kind  Animation
	owner string
}

// VisibleLeaf is a leaf that stays on screen, together with every leaf it
// stands for when its group is collapsed.
type VisibleLeaf struct {
	Key       string
	Collapsed string
	Members   []string
}

// CollapseOptions configures a CollapseState.
type CollapseOptions struct {
	Axis      Axis
	Duration  time.Duration
	Scheduler Scheduler
	// MetricAware keeps one representative per metric label (last key part).
	MetricAware bool
	// OnSettle is invoked after a transition completes, outside the lock.
	OnSettle func(prefix string, phase Phase)
}

// CollapseState tracks collapsed prefixes of one axis as a per-prefix state
// machine with cancellable transitions.
type CollapseState struct {
	mu          sync.Mutex
	axis        Axis
	duration    time.Duration
	scheduler   Scheduler
	metricAware bool
	onSettle    func(prefix string, phase Phase)

	gen      uint64
	prefixes map[string]*prefixState
	reps     map[string]string
	anims    map[string]leafAnimation
}

// NewCollapseState builds an all-expanded state.
func NewCollapseState(opts CollapseOptions) *CollapseState {
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	if opts.Axis == "" {
		opts.Axis = AxisRows
	}
	return &CollapseState{
		axis:        opts.Axis,
		duration:    ClampAnimationDuration(opts.Duration),
		scheduler:   opts.Scheduler,
		metricAware: opts.MetricAware,
		onSettle:    opts.OnSettle,
		prefixes:    map[string]*prefixState{},
		reps:        map[string]string{},
		anims:       map[string]leafAnimation{},
	}
}

// SetMetricAware switches representative selection for multi-measure columns.
func (c *CollapseState) SetMetricAware(v bool) {
	c.mu.Lock()
	c.metricAware = v
	c.mu.Unlock()
}

func (c *CollapseState) hideAnimation() Animation {
	if c.axis == AxisColumns {
		return AnimRollOut
	}
	return AnimRollUp
}

func (c *CollapseState) showAnimation() Animation {
	if c.axis == AxisColumns {
		return AnimRollIn
	}
	return AnimRollDown
}

// Collapse starts collapsing prefix, keeping representative (or the first
// leaf under the prefix when empty) on screen. ordered is the current leaf
// order. It returns false when the prefix is already collapsed or collapsing.
func (c *CollapseState) Collapse(prefix, representative string, ordered []string) bool {
	if prefix == "" {
		return false
	}
	c.mu.Lock()
	st := c.prefixes[prefix]
	if st != nil && (st.phase == PhaseCollapsed || st.phase == PhaseCollapsing) {
		c.mu.Unlock()
		return false
	}
	if st == nil {
		st = &prefixState{}
		c.prefixes[prefix] = st
	}
	c.stopLocked(st)
	c.clearAnimationsLocked(prefix)
	if representative != "" && HasPrefix(representative, prefix) {
		c.reps[prefix] = representative
	}
	kept := c.keptLocked(prefix, ordered)
	for _, leaf := range LeavesUnder(prefix, ordered) {
		if _, ok := kept[leaf]; ok {
			continue
		}
		c.anims[leaf] = leafAnimation{kind: c.hideAnimation(), owner: prefix}
	}
	st.phase = PhaseCollapsing
	c.scheduleLocked(prefix, st)
	c.mu.Unlock()
	return true
}

// Expand removes prefix from the collapsed set immediately and plays the
// reveal transition. It returns false when the prefix is not collapsed.
func (c *CollapseState) Expand(prefix string, ordered []string) bool {
	c.mu.Lock()
	st := c.prefixes[prefix]
	if st == nil || st.phase == PhaseExpanded || st.phase == PhaseExpanding {
		c.mu.Unlock()
		return false
	}
	c.stopLocked(st)
	c.clearAnimationsLocked(prefix)
	kept := c.keptLocked(prefix, ordered)
	for _, leaf := range LeavesUnder(prefix, ordered) {
		if _, ok := kept[leaf]; ok {
			continue
		}
		c.anims[leaf] = leafAnimation{kind: c.showAnimation(), owner: prefix}
	}
	delete(c.reps, prefix)
	st.phase = PhaseExpanding
	c.scheduleLocked(prefix, st)
	c.mu.Unlock()
	return true
}

// Toggle collapses an expanded prefix or expands a collapsed/collapsing one.
func (c *CollapseState) Toggle(prefix, representative string, ordered []string) Phase {
	switch c.Phase(prefix) {
	case PhaseCollapsed, PhaseCollapsing:
		c.Expand(prefix, ordered)
	default:
		c.Collapse(prefix, representative, ordered)
	}
	return c.Phase(prefix)
}

// ExpandAll clears the collapsed set and cancels pending transitions.
func (c *CollapseState) ExpandAll() {
	c.Reset()
}

// CollapseAll marks every prefix as collapsed without animating.
func (c *CollapseState) CollapseAll(prefixes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, prefix := range prefixes {
		st := c.prefixes[prefix]
		if st == nil {
			st = &prefixState{}
			c.prefixes[prefix] = st
		}
		c.stopLocked(st)
		c.clearAnimationsLocked(prefix)
		st.gen = c.nextGenLocked()
		st.phase = PhaseCollapsed
	}
}

// Reset drops every collapsed prefix, representative and transition.
func (c *CollapseState) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.prefixes {
		c.stopLocked(st)
	}
	c.gen++
	c.prefixes = map[string]*prefixState{}
	c.reps = map[string]string{}
	c.anims = map[string]leafAnimation{}
}

// Phase returns the current phase of prefix.
func (c *CollapseState) Phase(prefix string) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.prefixes[prefix]; ok {
		return st.phase
	}
	return PhaseExpanded
}

// IsCollapsed reports whether prefix completed collapsing.
func (c *CollapseState) IsCollapsed(prefix string) bool {
	return c.Phase(prefix) == PhaseCollapsed
}

// Collapsed returns the collapsed prefixes sorted by key.
func (c *CollapseState) Collapsed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for prefix, st := range c.prefixes {
		if st.phase == PhaseCollapsed {
			out = append(out, prefix)
		}
	}
	sort.Strings(out)
	return out
}

// Animation returns the transient animation of a leaf.
func (c *CollapseState) Animation(leaf string) Animation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anims[leaf].kind
}

// Busy reports whether any transition is pending.
func (c *CollapseState) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.prefixes {
		if st.phase == PhaseCollapsing || st.phase == PhaseExpanding {
			return true
		}
	}
	return false
}

// Representative returns the leaf standing in for prefix given the order.
func (c *CollapseState) Representative(prefix string, ordered []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.representativeLocked(prefix, ordered, "")
}

// VisibleLeaves filters ordered down to the leaves currently on screen.
func (c *CollapseState) VisibleLeaves(ordered []string) []VisibleLeaf {
	c.mu.Lock()
	defer c.mu.Unlock()
	repCache := map[string]string{}
	memberCache := map[string][]string{}
	out := make([]VisibleLeaf, 0, len(ordered))
	for _, leaf := range ordered {
		prefix := c.outermostCollapsedLocked(leaf)
		if prefix == "" {
			out = append(out, VisibleLeaf{Key: leaf, Members: []string{leaf}})
			continue
		}
		metric := c.metricOf(leaf)
		cacheKey := prefix + "\x00" + metric
		rep, ok := repCache[cacheKey]
		if !ok {
			rep = c.representativeLocked(prefix, ordered, metric)
			repCache[cacheKey] = rep
		}
		if rep != leaf {
			continue
		}
		members, ok := memberCache[cacheKey]
		if !ok {
			members = c.membersLocked(prefix, ordered, metric)
			memberCache[cacheKey] = members
		}
		out = append(out, VisibleLeaf{Key: leaf, Collapsed: prefix, Members: members})
	}
	return out
}

// Snapshot returns a frozen copy of the current phases, representatives and
// animations. The copy has no timers and never settles.
func (c *CollapseState) Snapshot() *CollapseState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := &CollapseState{
		axis:        c.axis,
		duration:    c.duration,
		scheduler:   RealScheduler{},
		metricAware: c.metricAware,
		gen:         c.gen,
		prefixes:    make(map[string]*prefixState, len(c.prefixes)),
		reps:        make(map[string]string, len(c.reps)),
		anims:       make(map[string]leafAnimation, len(c.anims)),
	}
	for prefix, st := range c.prefixes {
		out.prefixes[prefix] = &prefixState{phase: st.phase, gen: st.gen}
	}
	for prefix, rep := range c.reps {
		out.reps[prefix] = rep
	}
	for leaf, anim := range c.anims {
		out.anims[leaf] = anim
	}
	return out
}

// Fingerprint summarizes phases, representatives and animations for cache keys.
func (c *CollapseState) Fingerprint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := make([]string, 0, len(c.prefixes)+len(c.anims))
	for prefix, st := range c.prefixes {
		parts = append(parts, "p:"+prefix+"="+st.phase.String()+"@"+c.reps[prefix])
	}
	for leaf, anim := range c.anims {
		parts = append(parts, "a:"+leaf+"="+string(anim.kind))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

func (c *CollapseState) metricOf(leaf string) string {
	if !c.metricAware {
		return ""
	}
	parts := SplitKey(leaf)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func (c *CollapseState) outermostCollapsedLocked(leaf string) string {
	if len(c.prefixes) == 0 {
		return ""
	}
	parts := SplitKey(leaf)
	for depth := 1; depth < len(parts); depth++ {
		prefix := PrefixKey(parts, depth)
		if st, ok := c.prefixes[prefix]; ok && st.phase == PhaseCollapsed {
			return prefix
		}
	}
	return ""
}

func (c *CollapseState) representativeLocked(prefix string, ordered []string, metric string) string {
	if rep, ok := c.reps[prefix]; ok && (metric == "" || c.metricOf(rep) == metric) {
		for _, leaf := range ordered {
			if leaf == rep {
				return rep
			}
		}
	}
	for _, leaf := range ordered {
		if HasPrefix(leaf, prefix) && (metric == "" || c.metricOf(leaf) == metric) {
			return leaf
		}
	}
	return ""
}

func (c *CollapseState) membersLocked(prefix string, ordered []string, metric string) []string {
	var out []string
	for _, leaf := range ordered {
		if HasPrefix(leaf, prefix) && (metric == "" || c.metricOf(leaf) == metric) {
			out = append(out, leaf)
		}
	}
	return out
}

// keptLocked returns the leaves that stay visible when prefix collapses.
func (c *CollapseState) keptLocked(prefix string, ordered []string) map[string]struct{} {
	kept := map[string]struct{}{}
	if !c.metricAware {
		if rep := c.representativeLocked(prefix, ordered, ""); rep != "" {
			kept[rep] = struct{}{}
		}
		return kept
	}
	seen := map[string]struct{}{}
	for _, leaf := range LeavesUnder(prefix, ordered) {
		metric := c.metricOf(leaf)
		if _, ok := seen[metric]; ok {
			continue
		}
		seen[metric] = struct{}{}
		if rep := c.representativeLocked(prefix, ordered, metric); rep != "" {
			kept[rep] = struct{}{}
		}
	}
	return kept
}

func (c *CollapseState) nextGenLocked() uint64 {
	c.gen++
	return c.gen
}

func (c *CollapseState) stopLocked(st *prefixState) {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

func (c *CollapseState) clearAnimationsLocked(prefix string) {
	for leaf, anim := range c.anims {
		if anim.owner == prefix {
			delete(c.anims, leaf)
		}
	}
}

func (c *CollapseState) scheduleLocked(prefix string, st *prefixState) {
	gen := c.nextGenLocked()
	st.gen = gen
	st.timer = c.scheduler.AfterFunc(c.duration, func() {
		c.complete(prefix, gen)
	})
}

func (c *CollapseState) complete(prefix string, gen uint64) {
	c.mu.Lock()
	st, ok := c.prefixes[prefix]
	if !ok || st.gen != gen {
		c.mu.Unlock()
		return
	}
	st.timer = nil
	c.clearAnimationsLocked(prefix)
	var settled Phase
	switch st.phase {
	case PhaseCollapsing:
		st.phase = PhaseCollapsed
		settled = PhaseCollapsed
	case PhaseExpanding:
		delete(c.prefixes, prefix)
		settled = PhaseExpanded
	default:
		c.mu.Unlock()
		return
	}
	hook := c.onSettle
	c.mu.Unlock()
	if hook != nil {
		hook(prefix, settled)
	}
}
