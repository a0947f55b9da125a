package usecases

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/core/ports"
	"github.com/dirtio/soilmap/internal/pkg/geospatial"
	"github.com/dirtio/soilmap/internal/pkg/logging"
	"github.com/dirtio/soilmap/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/dirtio/soilmap/internal/core/usecases")

// ResolverState is the lifecycle state of a ClickResolver.
type ResolverState int

const (
	StateIdle ResolverState = iota
	StateAwaitingLookup
	StateResolved
)

func (s ResolverState) String() string {
	switch s {
	case StateAwaitingLookup:
		return "awaiting_lookup"
	case StateResolved:
		return "resolved"
	default:
		return "idle"
	}
}

// ResolverOptions configures a ClickResolver.
type ResolverOptions struct {
	// LookupTimeout bounds each lookup call. Zero means no bound.
	LookupTimeout time.Duration
	// FallbackHalfWidth is the diamond half-width in degrees.
	// Zero means geospatial.DefaultHalfWidth.
	FallbackHalfWidth float64
	// DisableFallback shows only the clicked point when no polygon is available.
	DisableFallback bool
}

// ClickResolver turns map clicks into the single displayed ClickResult.
// Only the most recent click may update the displayed state.
type ClickResolver struct {
	lookup ports.PolygonLookupService
	opts   ResolverOptions
	now    func() time.Time

	mu         sync.Mutex
	generation uint64
	state      ResolverState
	current    *domain.ClickResult
	observers  map[int]ports.ClickObserver
	nextObsID  int

	// notifyMu keeps ClickResolved deliveries in generation order.
	notifyMu sync.Mutex
}

// NewClickResolver creates a new ClickResolver.
func NewClickResolver(lookup ports.PolygonLookupService, opts ResolverOptions) *ClickResolver {
	if opts.FallbackHalfWidth <= 0 {
		opts.FallbackHalfWidth = geospatial.DefaultHalfWidth
	}
	return &ClickResolver{
		lookup:    lookup,
		opts:      opts,
		now:       time.Now,
		observers: make(map[int]ports.ClickObserver),
	}
}

// Subscribe registers an observer. The returned func removes it.
func (r *ClickResolver) Subscribe(obs ports.ClickObserver) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextObsID
	r.nextObsID++
	r.observers[id] = obs
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.observers, id)
			r.mu.Unlock()
		})
	}
}

// Current returns the displayed ClickResult, if any.
func (r *ClickResolver) Current() (domain.ClickResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return domain.ClickResult{}, false
	}
	return *r.current, true
}

// State returns the resolver's lifecycle state.
func (r *ClickResolver) State() ResolverState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Resolve handles one click synchronously. It returns the computed result
// and whether it became the displayed ClickResult.
func (r *ClickResolver) Resolve(ctx context.Context, click domain.Coordinate) (domain.ClickResult, bool) {
	gen := r.begin()
	return r.finish(ctx, gen, click)
}

// Click handles one click without blocking the caller. The click is ordered
// against other clicks on arrival; the lookup runs in the background.
// It returns the click's generation.
func (r *ClickResolver) Click(ctx context.Context, click domain.Coordinate) uint64 {
	gen := r.begin()
	go r.finish(context.WithoutCancel(ctx), gen, click)
	return gen
}

func (r *ClickResolver) begin() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.state = StateAwaitingLookup
	return r.generation
}

func (r *ClickResolver) finish(ctx context.Context, gen uint64, click domain.Coordinate) (domain.ClickResult, bool) {
	ctx, span := tracer.Start(ctx, "ClickResolver.Resolve")
	defer span.End()

	source, poly := r.decide(ctx, click)
	result := domain.ClickResult{
		ID:         uuid.NewString(),
		Generation: gen,
		Click:      click,
		Source:     source,
		Polygon:    poly,
		ResolvedAt: r.now(),
	}
	span.SetAttributes(
		attribute.Int64("click.generation", int64(gen)),
		attribute.String("click.source", string(source)),
	)

	applied := r.apply(result)
	if applied {
		metrics.ClicksResolved.WithLabelValues(string(source)).Inc()
		r.notifyResolved(ctx, result)
	} else {
		metrics.StaleResults.Inc()
		logging.FromContext(ctx).Debug("discarding stale click result",
			"generation", gen, "source", source)
	}
	r.notifyOccurred(ctx, click)

	return result, applied
}

// apply installs result if it still belongs to the latest click.
func (r *ClickResolver) apply(result domain.ClickResult) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if result.Generation != r.generation {
		return false
	}
	r.current = &result
	r.state = StateResolved
	return true
}

func (r *ClickResolver) decide(ctx context.Context, click domain.Coordinate) (domain.PolygonSource, domain.Polygon) {
	log := logging.FromContext(ctx)

	if !click.Valid() {
		log.Warn("click outside coordinate range, showing point only",
			"lat", click.Lat, "lng", click.Lng)
		return domain.SourcePoint, nil
	}

	lookupCtx := ctx
	if r.opts.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, r.opts.LookupTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := r.lookup.Lookup(lookupCtx, click)
	if err != nil {
		metrics.LookupDuration.WithLabelValues(lookupOutcome(err)).Observe(time.Since(start).Seconds())
		log.Warn("polygon lookup failed, using fallback",
			"lat", click.Lat, "lng", click.Lng, "error", err)
		return r.fallback(click)
	}

	poly, err := firstPolygon(resp)
	metrics.LookupDuration.WithLabelValues(lookupOutcome(err)).Observe(time.Since(start).Seconds())
	switch {
	case errors.Is(err, domain.ErrEmptyResult):
		return r.fallback(click)
	case err != nil:
		attrs := []any{"lat", click.Lat, "lng", click.Lng, "error", err}
		var pe *geospatial.ParseError
		if errors.As(err, &pe) {
			attrs = append(attrs, "fragment", pe.Fragment)
		}
		log.Warn("polygon parse failed, using fallback", attrs...)
		return r.fallback(click)
	}
	return domain.SourceLookup, poly
}

func (r *ClickResolver) fallback(click domain.Coordinate) (domain.PolygonSource, domain.Polygon) {
	if r.opts.DisableFallback {
		return domain.SourcePoint, nil
	}
	return domain.SourceFallback, geospatial.Diamond(click, r.opts.FallbackHalfWidth)
}

// firstPolygon decodes the WKT of the first record only.
func firstPolygon(resp *domain.LookupResponse) (domain.Polygon, error) {
	if resp == nil || len(resp.Records) == 0 {
		return nil, domain.ErrEmptyResult
	}
	rec := resp.Records[0]
	wkt, ok := rec.WKT()
	if !ok {
		parts := make([]string, len(rec))
		for i, f := range rec {
			parts[i] = string(f)
		}
		return nil, &geospatial.ParseError{
			Fragment: "[" + strings.Join(parts, ",") + "]",
			Reason:   "record has no WKT string at index 2",
		}
	}
	return geospatial.ParsePolygon(wkt)
}

func lookupOutcome(err error) string {
	var (
		transportErr *domain.LookupTransportError
		statusErr    *domain.LookupStatusError
		parseErr     *geospatial.ParseError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrEmptyResult):
		return "empty"
	case errors.As(err, &transportErr):
		return "transport_error"
	case errors.As(err, &statusErr):
		return "status_error"
	case errors.As(err, &parseErr):
		return "parse_error"
	default:
		return "error"
	}
}

func (r *ClickResolver) snapshotObservers() []ports.ClickObserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.ClickObserver, 0, len(r.observers))
	for _, o := range r.observers {
		out = append(out, o)
	}
	return out
}

func (r *ClickResolver) notifyResolved(ctx context.Context, result domain.ClickResult) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	// A newer click may have been applied and announced in the meantime.
	if cur, ok := r.Current(); !ok || cur.Generation != result.Generation {
		return
	}
	for _, o := range r.snapshotObservers() {
		o.ClickResolved(ctx, result)
	}
}

func (r *ClickResolver) notifyOccurred(ctx context.Context, click domain.Coordinate) {
	for _, o := range r.snapshotObservers() {
		o.ClickOccurred(ctx, click)
	}
}
