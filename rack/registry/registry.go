package registry

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/arena"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/lock"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/plugin"
)

var (
	ErrChannelInUse      = errors.New("registry: channel in use")
	ErrNoPluginPresent   = errors.New("registry: no plugin present")
	ErrNeedStereo        = errors.New("registry: stereo plugin must be addressed with both channels")
	ErrBadChannelMapping = errors.New("registry: invalid channel mapping")
	ErrUnknownPlugin     = errors.New("registry: unknown plugin kind")
	ErrLockTimeout       = errors.New("registry: lock timeout")
)

const (
	defaultLockTimeout    = 50 * time.Millisecond
	defaultQuiesceTimeout = 100 * time.Millisecond
	defaultCVInputs       = 4
	defaultTriggerInputs  = 2
)

// Slot is one active plugin instance.
type Slot struct {
	Mask   channel.Mask
	Kind   plugin.Kind
	ID     uuid.UUID
	Handle arena.Handle
	Stereo bool

	plugin plugin.Plugin
	params *param.Set
}

// Params returns the parameter set of the instance.
func (s *Slot) Params() *param.Set { return s.params }

// assignment is the published channel ownership. A stereo slot is stored
// in both fields.
type assignment struct {
	left, right *Slot
}

func (a *assignment) slots() []*Slot {
	switch {
	case a.left != nil && a.left == a.right:
		return []*Slot{a.left}
	case a.left != nil && a.right != nil:
		return []*Slot{a.left, a.right}
	case a.left != nil:
		return []*Slot{a.left}
	case a.right != nil:
		return []*Slot{a.right}
	}
	return nil
}

// without returns the slots owning any channel of mask and the assignment
// left once they are gone. A stereo slot is removed as a whole.
func (a *assignment) without(mask channel.Mask) ([]*Slot, *assignment) {
	next := *a
	var removed []*Slot
	for _, s := range a.slots() {
		if !s.Mask.Overlaps(mask) {
			continue
		}
		removed = append(removed, s)
		if s.Mask.Has(channel.Left) {
			next.left = nil
		}
		if s.Mask.Has(channel.Right) {
			next.right = nil
		}
	}
	return removed, &next
}

func (a *assignment) owns(mask channel.Mask) bool {
	return (mask.Has(channel.Left) && a.left != nil) || (mask.Has(channel.Right) && a.right != nil)
}

var empty = &assignment{}

// Option configures a Registry.
type Option func(*Registry)

// WithFormat sets the stream format handed to plugin Init.
func WithFormat(f core.Format) Option {
	return func(r *Registry) { r.format = f }
}

// WithArenaSize sets the arena size in bytes.
func WithArenaSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.arenaSize = n
		}
	}
}

// WithInputs sets the number of CV and trigger inputs parameters may be
// mapped to.
func WithInputs(cv, trig int) Option {
	return func(r *Registry) {
		if cv >= 0 {
			r.cvInputs = cv
		}
		if trig >= 0 {
			r.trigInputs = trig
		}
	}
}

// WithLogger sets the logger for control-plane messages.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver installs the receiver of change events.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// WithLockTimeout bounds the wait for the control-plane lock.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.lockTimeout = d
		}
	}
}

// WithQuiesceTimeout bounds the wait for the audio goroutine to leave a
// dispatch before an unpublished instance is torn down.
func WithQuiesceTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.quiesceTimeout = d
		}
	}
}

// Registry owns the arena and the plugin instances living in it.
type Registry struct {
	catalog        *plugin.Catalog
	format         core.Format
	arenaSize      int
	cvInputs       int
	trigInputs     int
	lockTimeout    time.Duration
	quiesceTimeout time.Duration
	logger         *slog.Logger
	observer       Observer

	mu        lock.Mutex
	arena     *arena.Arena
	retired   []*Slot
	remaining atomic.Int64

	cur   atomic.Pointer[assignment]
	epoch lock.Epoch
}

// New creates a registry activating plugins from catalog.
func New(catalog *plugin.Catalog, opts ...Option) (*Registry, error) {
	if catalog == nil {
		return nil, errors.New("registry: nil catalog")
	}

	r := &Registry{
		catalog:        catalog,
		format:         core.DefaultFormat(),
		arenaSize:      arena.DefaultSize,
		cvInputs:       defaultCVInputs,
		trigInputs:     defaultTriggerInputs,
		lockTimeout:    defaultLockTimeout,
		quiesceTimeout: defaultQuiesceTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	if err := r.format.Validate(); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	a, err := arena.New(r.arenaSize)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	r.arena = a
	r.remaining.Store(int64(a.Size()))
	r.cur.Store(empty)

	return r, nil
}

// Format returns the stream format plugins are initialized with.
func (r *Registry) Format() core.Format { return r.format }

// Catalog returns the plugin catalog.
func (r *Registry) Catalog() *plugin.Catalog { return r.catalog }

// Inputs returns the number of CV and trigger inputs.
func (r *Registry) Inputs() (cv, trig int) { return r.cvInputs, r.trigInputs }

func validMask(mask channel.Mask) error {
	if !mask.Valid() || mask == channel.MaskNone {
		return fmt.Errorf("%w: %d", ErrBadChannelMapping, mask)
	}
	return nil
}

func (r *Registry) guard() (func(), error) {
	unlock, ok := r.mu.Guard(r.lockTimeout)
	if !ok {
		return nil, fmt.Errorf("%w after %v", ErrLockTimeout, r.lockTimeout)
	}
	return unlock, nil
}

// SetPlugin activates a new instance of kind on mask. It fails with
// ErrChannelInUse if any channel of mask is owned; the current assignment
// is left untouched on every error.
func (r *Registry) SetPlugin(mask channel.Mask, kind plugin.Kind) error {
	if err := validMask(mask); err != nil {
		return err
	}
	unlock, err := r.guard()
	if err != nil {
		return err
	}
	defer unlock()

	r.reapLocked()
	return r.setLocked(mask, kind)
}

// Replace clears the owners of mask and activates kind in their place.
// Every check runs before the owners are touched, and if the new instance
// fails to initialize the old owners are restored with their arena
// contents intact.
func (r *Registry) Replace(mask channel.Mask, kind plugin.Kind) error {
	if err := validMask(mask); err != nil {
		return err
	}
	unlock, err := r.guard()
	if err != nil {
		return err
	}
	defer unlock()

	r.reapLocked()
	info, params, err := r.prepare(mask, kind)
	if err != nil {
		return err
	}

	cur := r.cur.Load()
	removed, next := cur.without(mask)
	if len(removed) == 0 {
		slot, err := r.newSlotLocked(mask, kind, info, params)
		if err != nil {
			return err
		}
		r.publishLocked(cur, slot)
		return nil
	}

	freed := make([]channel.Mask, len(removed))
	for i, s := range removed {
		freed[i] = s.Mask
	}
	if err := r.arena.CanReserve(mask, info.Size(r.format), freed...); err != nil {
		return fmt.Errorf("registry: activate %s on %s: %w", kind, mask, err)
	}

	r.cur.Store(next)
	if !r.epoch.Wait(r.quiesceTimeout) {
		r.cur.Store(cur)
		return fmt.Errorf("%w: audio goroutine still dispatching after %v", ErrLockTimeout, r.quiesceTimeout)
	}

	saved := make([][]byte, len(removed))
	for i, s := range removed {
		saved[i] = bytes.Clone(r.arena.Bytes(s.Handle))
		_ = r.arena.Release(s.Mask)
	}

	slot, err := r.newSlotLocked(mask, kind, info, params)
	if err != nil {
		for i, s := range removed {
			if _, rerr := r.arena.Reserve(s.Mask, s.Handle.Size); rerr != nil {
				r.logger.Error("restore arena region", "mask", s.Mask, "kind", s.Kind, "err", rerr)
				continue
			}
			copy(r.arena.Bytes(s.Handle), saved[i])
		}
		r.cur.Store(cur)
		r.remaining.Store(int64(r.arena.Remaining()))
		r.logger.Warn("replace failed, previous plugins kept", "mask", mask, "kind", kind, "err", err)
		return err
	}

	for _, s := range removed {
		s.plugin.Teardown()
		r.logger.Info("plugin removed", "mask", s.Mask, "kind", s.Kind, "id", s.ID)
		r.emit(Event{Type: EventPluginChanged, Mask: s.Mask, ID: s.ID})
	}
	r.publishLocked(next, slot)
	return nil
}

func (r *Registry) setLocked(mask channel.Mask, kind plugin.Kind) error {
	cur := r.cur.Load()
	if cur.owns(mask) {
		return fmt.Errorf("%w: %s", ErrChannelInUse, mask)
	}
	info, params, err := r.prepare(mask, kind)
	if err != nil {
		return err
	}
	slot, err := r.newSlotLocked(mask, kind, info, params)
	if err != nil {
		return err
	}
	r.publishLocked(cur, slot)
	return nil
}

// prepare runs the checks that do not depend on the arena.
func (r *Registry) prepare(mask channel.Mask, kind plugin.Kind) (plugin.Info, *param.Set, error) {
	info, ok := r.catalog.Lookup(kind)
	if !ok {
		return plugin.Info{}, nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, kind)
	}
	if info.Stereo != (mask == channel.MaskBoth) {
		if info.Stereo {
			return plugin.Info{}, nil, fmt.Errorf("%w: %s is stereo and needs both channels", ErrBadChannelMapping, kind)
		}
		return plugin.Info{}, nil, fmt.Errorf("%w: %s is mono and needs a single channel", ErrBadChannelMapping, kind)
	}

	params, err := param.NewSet(info.Params)
	if err != nil {
		return plugin.Info{}, nil, fmt.Errorf("registry: %s: %w", kind, err)
	}
	return info, params, nil
}

// newSlotLocked reserves and initializes a new instance. On error the
// arena is unchanged.
func (r *Registry) newSlotLocked(mask channel.Mask, kind plugin.Kind, info plugin.Info, params *param.Set) (*Slot, error) {
	h, err := r.arena.Reserve(mask, info.Size(r.format))
	if err != nil {
		return nil, fmt.Errorf("registry: activate %s on %s: %w", kind, mask, err)
	}

	p := info.New()
	cfg := plugin.Config{
		Format: r.format,
		Memory: plugin.NewMemory(r.arena, h),
		Params: params,
	}
	if err := p.Init(cfg); err != nil {
		_ = r.arena.Release(mask)
		return nil, fmt.Errorf("registry: init %s: %w", kind, err)
	}

	return &Slot{
		Mask:   mask,
		Kind:   kind,
		ID:     uuid.New(),
		Handle: h,
		Stereo: info.Stereo,
		plugin: p,
		params: params,
	}, nil
}

// publishLocked makes slot visible to the audio goroutine on top of base.
func (r *Registry) publishLocked(base *assignment, slot *Slot) {
	next := *base
	mask := slot.Mask
	if mask.Has(channel.Left) {
		next.left = slot
	}
	if mask.Has(channel.Right) {
		next.right = slot
	}
	r.cur.Store(&next)
	r.remaining.Store(int64(r.arena.Remaining()))

	r.logger.Info("plugin activated",
		"mask", mask, "kind", slot.Kind, "id", slot.ID, "bytes", slot.Handle.Size, "remaining", r.arena.Remaining())
	r.emit(Event{Type: EventPluginChanged, Mask: mask, Kind: slot.Kind, ID: slot.ID})
}

// Clear tears down the owners of any channel in mask. A stereo instance is
// removed as a whole. Clearing an unowned mask is a no-op.
func (r *Registry) Clear(mask channel.Mask) error {
	if err := validMask(mask); err != nil {
		return err
	}
	unlock, err := r.guard()
	if err != nil {
		return err
	}
	defer unlock()

	r.reapLocked()
	return r.clearLocked(mask)
}

func (r *Registry) clearLocked(mask channel.Mask) error {
	removed, next := r.cur.Load().without(mask)
	if len(removed) == 0 {
		return nil
	}

	r.cur.Store(next)
	if !r.epoch.Wait(r.quiesceTimeout) {
		r.retired = append(r.retired, removed...)
		return fmt.Errorf("%w: audio goroutine still dispatching after %v", ErrLockTimeout, r.quiesceTimeout)
	}

	for _, s := range removed {
		r.destroyLocked(s)
		r.emit(Event{Type: EventPluginChanged, Mask: s.Mask, ID: s.ID})
	}
	return nil
}

// Reset tears down every instance and empties the arena.
func (r *Registry) Reset() error {
	unlock, err := r.guard()
	if err != nil {
		return err
	}
	defer unlock()

	cur := r.cur.Load()
	r.cur.Store(empty)
	if !r.epoch.Wait(r.quiesceTimeout) {
		r.retired = append(r.retired, cur.slots()...)
		return fmt.Errorf("%w: audio goroutine still dispatching after %v", ErrLockTimeout, r.quiesceTimeout)
	}

	for _, s := range append(r.retired, cur.slots()...) {
		r.destroyLocked(s)
	}
	r.retired = nil
	r.arena.ReleaseAll()
	r.remaining.Store(int64(r.arena.Remaining()))

	r.logger.Info("plugins reset", "arena", r.arena.Size())
	r.emit(Event{Type: EventReset})
	return nil
}

func (r *Registry) destroyLocked(s *Slot) {
	s.plugin.Teardown()
	_ = r.arena.Release(s.Mask)
	r.remaining.Store(int64(r.arena.Remaining()))
	r.logger.Info("plugin removed", "mask", s.Mask, "kind", s.Kind, "id", s.ID)
}

// reapLocked destroys instances whose removal timed out earlier, once the
// audio goroutine has moved on.
func (r *Registry) reapLocked() {
	if len(r.retired) == 0 || !r.epoch.Wait(r.quiesceTimeout) {
		return
	}
	for _, s := range r.retired {
		r.destroyLocked(s)
	}
	r.retired = nil
}

// IsStereo reports whether a stereo instance owns both channels.
func (r *Registry) IsStereo() bool {
	a := r.cur.Load()
	return a.left != nil && a.left.Stereo
}

// OnLeft returns the kind owning the left channel.
func (r *Registry) OnLeft() (plugin.Kind, bool) {
	if s := r.cur.Load().left; s != nil {
		return s.Kind, true
	}
	return "", false
}

// OnRight returns the kind owning the right channel.
func (r *Registry) OnRight() (plugin.Kind, bool) {
	if s := r.cur.Load().right; s != nil {
		return s.Kind, true
	}
	return "", false
}

// RemainingBufferSize returns the free arena bytes.
func (r *Registry) RemainingBufferSize() int {
	return int(r.remaining.Load())
}

// ArenaSize returns the configured arena capacity.
func (r *Registry) ArenaSize() int { return r.arena.Size() }

// Dispatch runs the published instances on pd. It is called by the audio
// goroutine once per block and returns the channels that were processed
// and whether a stereo instance handled them. When daisy is set and no
// stereo instance is active, the left output is copied to the right input
// before the right instance runs.
func (r *Registry) Dispatch(pd *plugin.ProcessData, daisy bool) (channel.Mask, bool) {
	r.epoch.Enter()
	defer r.epoch.Exit()

	a := r.cur.Load()
	if a.left != nil && a.left.Stereo {
		a.left.plugin.Process(channel.MaskBoth, pd)
		return channel.MaskBoth, true
	}

	var done channel.Mask
	if a.left != nil {
		a.left.plugin.Process(channel.MaskLeft, pd)
		done |= channel.MaskLeft
	}
	if daisy {
		copy(pd.Right, pd.Left)
	}
	if a.right != nil {
		a.right.plugin.Process(channel.MaskRight, pd)
		done |= channel.MaskRight
	}
	return done, false
}
