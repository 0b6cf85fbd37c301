package sessionsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mkrupp/homecase-console/internal/domain"
	"github.com/mkrupp/homecase-console/internal/infra/logging"
)

// UserFetcher fetches the user a token belongs to.
type UserFetcher interface {
	Me(ctx context.Context, token string) (*domain.User, error)
}

// Status is the resolution state of the current user.
type Status int

const (
	// StatusAnonymous means there is no token and therefore no user.
	StatusAnonymous Status = iota
	StatusLoading
	StatusResolved
	// StatusFailed means resolution failed for a reason other than an
	// unauthorized token; Err holds the cause.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAnonymous:
		return "anonymous"
	case StatusLoading:
		return "loading"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// UserState is the value published to UserResolver subscribers.
// User is non-nil only when Status is StatusResolved.
type UserState struct {
	Status Status
	User   *domain.User
	Err    error
}

// UserResolver derives the current user from the AuthStore's token.
//
// Every resolution is tagged with a generation. A token change, Refresh or
// Close starts a new generation and cancels the previous resolution; results
// of an older generation are dropped even if the fetcher ignores cancellation.
type UserResolver struct {
	auth      *AuthStore
	fetcher   UserFetcher
	log       logging.Logger
	observers observers[UserState]
	wg        sync.WaitGroup

	m           sync.Mutex
	state       UserState
	gen         uint64
	cancel      context.CancelFunc
	baseCtx     context.Context //nolint:containedctx
	started     bool
	closed      bool
	unsubscribe func()
}

// NewUserResolver creates a resolver in the anonymous state. Call Start to bind it to auth.
func NewUserResolver(auth *AuthStore, fetcher UserFetcher) *UserResolver {
	return &UserResolver{
		auth:    auth,
		fetcher: fetcher,
		log:     logging.GetLogger("svc.sessionsvc.user_resolver"),
	}
}

// Start subscribes to token changes and, if a token is already present,
// begins resolving it in the background. ctx bounds all background resolutions.
func (r *UserResolver) Start(ctx context.Context) error {
	r.m.Lock()

	if r.closed {
		r.m.Unlock()

		return ErrSessionClosed
	}

	if r.started {
		r.m.Unlock()

		return nil
	}

	r.started = true
	r.baseCtx = ctx
	r.m.Unlock()

	unsubscribe := r.auth.Subscribe(r.onToken)

	r.m.Lock()
	r.unsubscribe = unsubscribe
	r.m.Unlock()

	if t, ok := r.auth.Token(); ok {
		r.resolveAsync(t)
	}

	return nil
}

// Close stops the resolver. An in-flight resolution is cancelled and its
// result dropped. Close waits for background work to finish.
func (r *UserResolver) Close() {
	r.m.Lock()

	if r.closed {
		r.m.Unlock()

		return
	}

	r.closed = true
	r.gen++

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	unsubscribe := r.unsubscribe
	r.m.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	r.wg.Wait()
}

// Current returns the latest published state.
func (r *UserResolver) Current() UserState {
	r.m.Lock()
	defer r.m.Unlock()

	return r.state
}

// User returns the resolved user, or nil.
func (r *UserResolver) User() *domain.User {
	return r.Current().User
}

// Subscribe registers fn to be called with every published state.
func (r *UserResolver) Subscribe(fn func(UserState)) (unsubscribe func()) {
	return r.observers.subscribe(fn)
}

// Refresh starts a new background resolution of the current token.
func (r *UserResolver) Refresh() {
	if t, ok := r.auth.Token(); ok {
		r.resolveAsync(t)
	} else {
		r.reset(context.Background())
	}
}

// Settled waits until the latest resolution has finished and returns its
// state. It returns at once when no resolution is in flight.
func (r *UserResolver) Settled(ctx context.Context) (UserState, error) {
	changed := make(chan struct{}, 1)

	unsubscribe := r.Subscribe(func(UserState) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		r.m.Lock()
		state, closed := r.state, r.closed
		r.m.Unlock()

		if state.Status != StatusLoading {
			return state, nil
		}

		if closed {
			return state, ErrSessionClosed
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return state, fmt.Errorf("wait for user: %w", ctx.Err())
		}
	}
}

// Resolve resolves the current token synchronously and returns the user.
// Without a token it returns nil without a network call. An unauthorized
// token is logged out and also yields nil; other failures are returned.
func (r *UserResolver) Resolve(ctx context.Context) (*domain.User, error) {
	t, ok := r.auth.Token()
	if !ok {
		r.reset(ctx)

		return nil, nil
	}

	ctx, gen, ok := r.begin(ctx)
	if !ok {
		return nil, ErrSessionClosed
	}

	state := r.run(ctx, gen, t)

	return state.User, state.Err
}

func (r *UserResolver) onToken(ts TokenState) {
	if !ts.Authenticated {
		r.reset(context.Background())

		return
	}

	r.resolveAsync(ts.Token)
}

// reset starts a new generation and publishes the anonymous state.
func (r *UserResolver) reset(ctx context.Context) {
	r.m.Lock()

	if r.closed {
		r.m.Unlock()

		return
	}

	r.gen++

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	changed := r.state.Status != StatusAnonymous
	r.state = UserState{Status: StatusAnonymous}
	r.m.Unlock()

	if changed {
		r.log.DebugContext(ctx, "user cleared")
		r.observers.notify(UserState{Status: StatusAnonymous})
	}
}

func (r *UserResolver) resolveAsync(t string) {
	r.m.Lock()
	parent := r.baseCtx
	r.m.Unlock()

	if parent == nil {
		parent = context.Background()
	}

	ctx, gen, ok := r.begin(parent)
	if !ok {
		return
	}

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		r.run(ctx, gen, t)
	}()
}

// begin starts a new generation, cancelling the previous one, and publishes the loading state.
func (r *UserResolver) begin(parent context.Context) (context.Context, uint64, bool) {
	r.m.Lock()

	if r.closed {
		r.m.Unlock()

		return nil, 0, false
	}

	if r.cancel != nil {
		r.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.gen++
	gen := r.gen
	r.state = UserState{Status: StatusLoading}
	r.m.Unlock()

	r.observers.notify(UserState{Status: StatusLoading})

	return ctx, gen, true
}

// run fetches the user for t and publishes the outcome if gen is still current.
// It returns the outcome as seen by the caller.
func (r *UserResolver) run(ctx context.Context, gen uint64, t string) UserState {
	user, err := r.fetcher.Me(ctx, t)

	switch {
	case err == nil:
		return r.publish(ctx, gen, UserState{Status: StatusResolved, User: user})

	case errors.Is(err, domain.ErrUnauthorized):
		r.log.InfoContext(ctx, "token rejected, logging out", "error", err)

		if !r.current(gen) {
			return UserState{Status: StatusAnonymous}
		}

		if logoutErr := r.auth.Expire(ctx, t); logoutErr != nil {
			r.log.WarnContext(ctx, "logout after rejected token failed", "error", logoutErr)
		}

		// Expire notified us unless the token was already gone.
		return r.publish(ctx, gen, UserState{Status: StatusAnonymous})

	default:
		if ctx.Err() != nil {
			r.log.DebugContext(ctx, "resolution cancelled", "gen", gen)

			return UserState{Status: StatusAnonymous, Err: fmt.Errorf("resolve user: %w", ctx.Err())}
		}

		r.log.WarnContext(ctx, "resolve user failed", "error", err)

		return r.publish(ctx, gen, UserState{Status: StatusFailed, Err: fmt.Errorf("resolve user: %w", err)})
	}
}

func (r *UserResolver) current(gen uint64) bool {
	r.m.Lock()
	defer r.m.Unlock()

	return !r.closed && r.gen == gen
}

// publish stores and announces state if gen is still current. A stale
// result is dropped but still returned to the caller that asked for it.
func (r *UserResolver) publish(ctx context.Context, gen uint64, state UserState) UserState {
	r.m.Lock()

	if r.closed || r.gen != gen {
		r.m.Unlock()
		r.log.DebugContext(ctx, "dropping stale resolution", "gen", gen, "status", state.Status)

		return state
	}

	r.state = state

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	r.m.Unlock()

	if state.Status == StatusResolved && state.User != nil {
		r.log.DebugContext(ctx, "user resolved", "id", state.User.ID)
	}

	r.observers.notify(state)

	return state
}
