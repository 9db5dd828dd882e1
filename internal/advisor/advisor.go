package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/awaistahir/smart-laundry/internal/engine"
	"github.com/awaistahir/smart-laundry/internal/metrics"
)

var (
	ErrUnknownLocation = errors.New("unknown location")
	ErrEmptyQuery      = errors.New("empty location query")
	ErrClosed          = errors.New("advisor stopped")
)

// ScheduleFetcher fetches the tariff covering a coordinate
type ScheduleFetcher interface {
	FetchSchedule(ctx context.Context, lat, lon float64) (*engine.RateSchedule, error)
}

// Geocoder resolves free text to a location
type Geocoder interface {
	ResolveLocation(ctx context.Context, query string) (engine.LocationProfile, error)
}

// SettingsStore persists settings and searched locations. Optional.
type SettingsStore interface {
	SaveSettings(s Settings) error
	SaveLocation(l engine.LocationProfile) error
}

// Deps are the collaborators of an Advisor
type Deps struct {
	Fetcher      ScheduleFetcher
	Geocoder     Geocoder
	Store        SettingsStore
	Logger       zerolog.Logger
	PollInterval time.Duration    // 0 disables polling
	Now          func() time.Time // defaults to time.Now
}

// Advisor recomputes advice whenever something that affects it changes.
//
// All mutable state (registry, settings, schedule cache, generation counter)
// belongs to the Run goroutine. Public methods post closures to it and wait
// for the answer. Computations run on their own goroutines and report back
// to Run; only the result of the most recent trigger is published, anything
// older that completes later is dropped.
type Advisor struct {
	deps Deps
	log  zerolog.Logger

	cmds    chan func()
	results chan result
	done    chan struct{}
	running atomic.Bool

	latest atomic.Pointer[Snapshot]

	subMu     sync.Mutex
	changed   chan struct{}
	subs      []chan Snapshot
	subClosed bool

	// owned by Run
	ctx      context.Context
	registry *Registry
	settings Settings
	cache    map[string]*engine.RateSchedule
	gen      uint64
}

type result struct {
	gen      uint64
	location string
	schedule *engine.RateSchedule
	fetched  bool
	snapshot Snapshot
}

// New creates an Advisor. The settings' location must be in registry.
func New(deps Deps, registry *Registry, settings Settings) (*Advisor, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("advisor: schedule fetcher required")
	}
	if registry == nil {
		registry = NewRegistry(DefaultLocations()...)
	}
	if _, ok := registry.Lookup(settings.Location); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, settings.Location)
	}
	if err := settings.Appliance.Validate(); err != nil {
		return nil, err
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Advisor{
		deps:     deps,
		log:      deps.Logger.With().Str("component", "advisor").Logger(),
		cmds:     make(chan func()),
		results:  make(chan result),
		done:     make(chan struct{}),
		changed:  make(chan struct{}),
		registry: registry,
		settings: settings,
		cache:    make(map[string]*engine.RateSchedule),
	}, nil
}

// Run owns the advisor state until ctx is cancelled. It computes once at
// startup and again on every trigger and poll tick.
func (a *Advisor) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("advisor: already running")
	}
	defer close(a.done)
	defer a.closeSubs()
	a.ctx = ctx

	var tick <-chan time.Time
	if a.deps.PollInterval > 0 {
		ticker := time.NewTicker(a.deps.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	a.trigger(TriggerStartup)

	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("shutting down")
			return nil
		case fn := <-a.cmds:
			fn()
		case r := <-a.results:
			a.accept(r)
		case <-tick:
			a.trigger(TriggerPoll)
		}
	}
}

// trigger starts a new generation with the current settings
func (a *Advisor) trigger(why Trigger) uint64 {
	ctx := a.ctx
	a.gen++
	gen := a.gen
	metrics.RefreshTotal.WithLabelValues(string(why)).Inc()

	loc, _ := a.registry.Lookup(a.settings.Location)
	settings := a.settings
	cached, hit := a.cache[loc.Name]

	a.log.Debug().Uint64("generation", gen).Str("trigger", string(why)).
		Str("location", loc.Name).Bool("cached", hit).Msg("computing advice")

	go func() {
		schedule := cached
		var fetchErr error
		if !hit {
			schedule, fetchErr = a.deps.Fetcher.FetchSchedule(ctx, loc.Latitude, loc.Longitude)
			if fetchErr != nil {
				a.log.Warn().Err(fetchErr).Str("location", loc.Name).Msg("rate schedule unavailable, using fallback price")
				schedule = nil
			}
		}

		snap := Evaluate(Inputs{
			Schedule:      schedule,
			FetchErr:      fetchErr,
			Location:      loc,
			Appliance:     settings.Appliance,
			SolarPriority: settings.SolarPriority,
			Now:           a.deps.Now(),
		})
		snap.Generation = gen
		snap.Trigger = why

		r := result{gen: gen, location: loc.Name, schedule: schedule, fetched: !hit, snapshot: snap}
		select {
		case a.results <- r:
		case <-ctx.Done():
		}
	}()

	return gen
}

func (a *Advisor) accept(r result) {
	if r.gen != a.gen {
		metrics.StaleResultsDiscarded.Inc()
		a.log.Debug().Uint64("generation", r.gen).Uint64("latest", a.gen).Msg("discarding stale result")
		return
	}
	if r.fetched && r.schedule != nil {
		a.cache[r.location] = r.schedule
	}
	a.publish(r.snapshot)
}

func (a *Advisor) publish(s Snapshot) {
	metrics.CurrentPrice.Set(s.Forecast.CurrentPrice)

	a.subMu.Lock()
	for _, ch := range a.subs {
		// keep only the newest snapshot for slow readers
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
	a.latest.Store(&s)
	close(a.changed)
	a.changed = make(chan struct{})
	a.subMu.Unlock()

	a.log.Info().Uint64("generation", s.Generation).Str("location", s.Location.Name).
		Str("provider", s.Provider).Float64("price", s.Forecast.CurrentPrice).
		Str("status", string(s.Advice.Status)).Msg("advice updated")
}

// Latest returns the most recently published snapshot
func (a *Advisor) Latest() (Snapshot, bool) {
	s := a.latest.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// Subscribe returns a channel that always holds the newest snapshot not yet
// read. The channel is closed by Unsubscribe or when Run returns.
func (a *Advisor) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	a.subMu.Lock()
	defer a.subMu.Unlock()
	if s, ok := a.Latest(); ok {
		ch <- s
	}
	if a.subClosed {
		close(ch)
		return ch
	}
	a.subs = append(a.subs, ch)
	return ch
}

// Unsubscribe removes the subscriber and closes its channel
func (a *Advisor) Unsubscribe(sub <-chan Snapshot) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for i, ch := range a.subs {
		if ch == sub {
			a.subs = append(a.subs[:i], a.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (a *Advisor) closeSubs() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	a.subClosed = true
	for _, ch := range a.subs {
		close(ch)
	}
	a.subs = nil
}

// WaitFor blocks until a snapshot of generation gen or newer is published
func (a *Advisor) WaitFor(ctx context.Context, gen uint64) (Snapshot, error) {
	for {
		a.subMu.Lock()
		changed := a.changed
		a.subMu.Unlock()

		if s, ok := a.Latest(); ok && s.Generation >= gen {
			return s, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-a.done:
			return Snapshot{}, ErrClosed
		}
	}
}

// do runs fn on the Run goroutine and returns its error
func (a *Advisor) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	cmd := func() { errc <- fn() }

	select {
	case a.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrClosed
	}

	select {
	case err := <-errc:
		return err
	case <-a.done:
		return ErrClosed
	}
}

// Refresh drops the cached schedule for the current location and recomputes
func (a *Advisor) Refresh(ctx context.Context) (uint64, error) {
	var gen uint64
	err := a.do(ctx, func() error {
		delete(a.cache, a.settings.Location)
		gen = a.trigger(TriggerManual)
		return nil
	})
	return gen, err
}

// SelectLocation switches to a known location
func (a *Advisor) SelectLocation(ctx context.Context, name string) (uint64, error) {
	var gen uint64
	err := a.do(ctx, func() error {
		if _, ok := a.registry.Lookup(name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownLocation, name)
		}
		a.settings.Location = name
		a.persistSettings()
		gen = a.trigger(TriggerLocation)
		return nil
	})
	return gen, err
}

// SearchLocation geocodes query and selects the result. A name already known
// keeps its existing entry.
func (a *Advisor) SearchLocation(ctx context.Context, query string) (engine.LocationProfile, uint64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return engine.LocationProfile{}, 0, ErrEmptyQuery
	}
	if a.deps.Geocoder == nil {
		return engine.LocationProfile{}, 0, errors.New("advisor: no geocoder configured")
	}

	// geocoding runs on the caller's goroutine, only the registry update goes through Run
	found, err := a.deps.Geocoder.ResolveLocation(ctx, query)
	if err != nil {
		a.log.Warn().Err(err).Str("query", query).Msg("location search failed")
		return engine.LocationProfile{}, 0, err
	}

	var (
		loc engine.LocationProfile
		gen uint64
	)
	err = a.do(ctx, func() error {
		var added bool
		loc, added = a.registry.Add(found)
		if added && a.deps.Store != nil {
			if err := a.deps.Store.SaveLocation(loc); err != nil {
				a.log.Error().Err(err).Str("location", loc.Name).Msg("saving location")
			}
		}
		a.settings.Location = loc.Name
		a.persistSettings()
		gen = a.trigger(TriggerLocation)
		return nil
	})
	return loc, gen, err
}

// UpdateAppliance applies a settings edit. Invalid edits are rejected whole,
// leave the profile as it was and do not recompute.
func (a *Advisor) UpdateAppliance(ctx context.Context, edit engine.ApplianceEdit) (uint64, error) {
	var gen uint64
	err := a.do(ctx, func() error {
		if edit.Empty() {
			gen = a.gen
			return nil
		}
		next, err := engine.ApplyEdit(a.settings.Appliance, edit)
		if err != nil {
			a.log.Warn().Err(err).Msg("rejected appliance edit")
			return err
		}
		a.settings.Appliance = next
		a.persistSettings()
		gen = a.trigger(TriggerConfig)
		return nil
	})
	return gen, err
}

// SetDryerMode switches between the electric and gas dryer
func (a *Advisor) SetDryerMode(ctx context.Context, mode engine.DryerMode) (uint64, error) {
	if !mode.Valid() {
		return 0, fmt.Errorf("%w: unknown dryer mode %q", engine.ErrInvalidConfiguration, mode)
	}
	var gen uint64
	err := a.do(ctx, func() error {
		a.settings.Appliance.DryerMode = mode
		a.persistSettings()
		gen = a.trigger(TriggerConfig)
		return nil
	})
	return gen, err
}

// SetSolarPriority turns solar priority mode on or off
func (a *Advisor) SetSolarPriority(ctx context.Context, on bool) (uint64, error) {
	var gen uint64
	err := a.do(ctx, func() error {
		a.settings.SolarPriority = on
		a.persistSettings()
		gen = a.trigger(TriggerConfig)
		return nil
	})
	return gen, err
}

// Settings returns the current settings
func (a *Advisor) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	err := a.do(ctx, func() error {
		s = a.settings
		return nil
	})
	return s, err
}

// Locations returns every known location
func (a *Advisor) Locations(ctx context.Context) ([]engine.LocationProfile, error) {
	var locs []engine.LocationProfile
	err := a.do(ctx, func() error {
		locs = a.registry.All()
		return nil
	})
	return locs, err
}

func (a *Advisor) persistSettings() {
	if a.deps.Store == nil {
		return
	}
	if err := a.deps.Store.SaveSettings(a.settings); err != nil {
		a.log.Error().Err(err).Msg("saving settings")
	}
}
