package payment

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/evservice/core/clientstore"
	"github.com/dmitrymomot/evservice/core/guard"
	"github.com/dmitrymomot/evservice/core/logger"
)

// DefaultBookingsPath is where a confirmed payment sends the user.
const DefaultBookingsPath = "/customer/bookings"

// SessionView is the part of the session the reconciler branches on.
type SessionView interface {
	WaitHydrated(ctx context.Context) error
	IsAuthenticated() bool
}

// Observer receives the terminal status of every reconciliation.
type Observer interface {
	ObserveReconciliation(status string)
}

// Navigation is where the return page goes next. Replace means navigate
// immediately without keeping the return page in history.
type Navigation struct {
	Target  string
	Delay   time.Duration
	Replace bool
}

// Outcome is the resolved result plus the navigation it implies.
type Outcome struct {
	Result     Result
	Navigation Navigation
	// Authenticated reports the session state the navigation was based on.
	Authenticated bool
}

// Reconciler handles one gateway return. It is bound to a single page load.
type Reconciler struct {
	session    SessionView
	verifier   Verifier
	shortLived clientstore.Storage
	durable    clientstore.Storage

	logger       *slog.Logger
	observer     Observer
	delay        time.Duration
	markerTTL    time.Duration
	bookingsPath string
	landingPath  string
	loginURL     func(resume string) string
	now          func() time.Time

	once    sync.Once
	outcome Outcome

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger sets the logger (default: discard).
func WithReconcilerLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver reports terminal statuses to o.
func WithObserver(o Observer) ReconcilerOption {
	return func(r *Reconciler) { r.observer = o }
}

// WithDelay sets the pause before a scheduled navigation (default 3s).
func WithDelay(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d >= 0 {
			r.delay = d
		}
	}
}

// WithMarkerTTL sets how long the post-login success marker lives (default 30m).
func WithMarkerTTL(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.markerTTL = d
		}
	}
}

// WithBookingsPath overrides DefaultBookingsPath.
func WithBookingsPath(path string) ReconcilerOption {
	return func(r *Reconciler) {
		if path != "" {
			r.bookingsPath = path
		}
	}
}

// WithLoginURL sets how the login detour carrying a resume target is built.
// Defaults to guard.New().LoginURL.
func WithLoginURL(fn func(resume string) string) ReconcilerOption {
	return func(r *Reconciler) {
		if fn != nil {
			r.loginURL = fn
		}
	}
}

// WithReconcilerClock overrides time.Now for ConfirmedAt.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler wires a reconciler for one return page load.
func NewReconciler(sess SessionView, verifier Verifier, shortLived, durable clientstore.Storage, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		session:      sess,
		verifier:     verifier,
		shortLived:   shortLived,
		durable:      durable,
		logger:       logger.Discard(),
		delay:        3 * time.Second,
		markerTTL:    30 * time.Minute,
		bookingsPath: DefaultBookingsPath,
		landingPath:  "/",
		loginURL:     guard.New().LoginURL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reconciles the return once. Later calls return the first outcome.
// The outcome is always terminal.
func (r *Reconciler) Run(ctx context.Context, rawQuery string) Outcome {
	r.once.Do(func() {
		out := r.run(ctx, rawQuery)
		r.mu.Lock()
		r.outcome = out
		r.mu.Unlock()
		if r.observer != nil {
			r.observer.ObserveReconciliation(out.Result.Status.String())
		}
	})
	return r.Outcome()
}

// Outcome returns the current outcome; Processing until Run completes.
func (r *Reconciler) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

func (r *Reconciler) run(ctx context.Context, rawQuery string) Outcome {
	res := NewResult()

	if err := r.session.WaitHydrated(ctx); err != nil {
		r.logger.WarnContext(ctx, "payment return abandoned before session restored",
			logger.Component("payment"), logger.Error(err))
		res, _ = res.Fail(Reason(&VerificationError{Kind: ErrNetwork, Err: err}))
		return r.navigate(res, false)
	}

	conf, err := r.verifier.Verify(ctx, rawQuery)
	if err != nil {
		r.logger.InfoContext(ctx, "payment verification failed",
			logger.Component("payment"), logger.Error(err))
		res, _ = res.Fail(Reason(err))
		return r.navigate(res, r.session.IsAuthenticated())
	}

	r.confirmPending(ctx, conf)
	res, _ = res.Succeed(conf)

	authenticated := r.session.IsAuthenticated()
	if !authenticated {
		err := clientstore.Set(ctx, r.shortLived, clientstore.KeyPaymentSuccess, "true", r.markerTTL)
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to store payment success marker",
				logger.Component("payment"), logger.Error(err))
		}
	}
	r.logger.InfoContext(ctx, "payment verified",
		logger.Component("payment"), logger.Result(res.Status.String()))
	return r.navigate(res, authenticated)
}

// confirmPending moves the staged draft into the booking history. The draft
// is deleted only after the history write succeeds.
func (r *Reconciler) confirmPending(ctx context.Context, conf Confirmation) {
	booking, err := LoadPending(ctx, r.shortLived)
	if errors.Is(err, ErrNoPendingBooking) {
		return
	}
	if err != nil {
		r.logger.WarnContext(ctx, "discarding unreadable pending booking",
			logger.Component("payment"), logger.Error(err))
		r.deletePending(ctx)
		return
	}

	rec := BookingRecord{
		PendingBooking: booking,
		Status:         BookingStatusConfirmed,
		ConfirmedAt:    r.now().UTC(),
		TransactionNo:  conf.TransactionNo,
	}
	if err := appendHistory(ctx, r.durable, rec); err != nil {
		r.logger.ErrorContext(ctx, "failed to record confirmed booking",
			logger.Component("payment"), logger.Error(err))
		return
	}
	r.deletePending(ctx)
}

func (r *Reconciler) deletePending(ctx context.Context) {
	if err := r.shortLived.Delete(ctx, clientstore.KeyPendingBooking); err != nil {
		r.logger.ErrorContext(ctx, "failed to delete pending booking",
			logger.Component("payment"), logger.Error(err))
	}
}

func (r *Reconciler) navigate(res Result, authenticated bool) Outcome {
	out := Outcome{Result: res, Authenticated: authenticated}
	switch {
	case res.Status == Succeeded && authenticated:
		out.Navigation = Navigation{Target: r.bookingsPath, Delay: r.delay}
	case res.Status == Succeeded:
		out.Navigation = Navigation{Target: r.loginURL(r.bookingsPath), Replace: true}
	default:
		out.Navigation = Navigation{Target: r.landingPath, Delay: r.delay}
	}
	return out
}

// Schedule arms the post-resolution navigation. It reports false when Run has
// not resolved yet or the reconciler is closed. Calling it again replaces the
// pending timer.
func (r *Reconciler) Schedule(navigate func(target string)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.outcome
	if !out.Result.Status.Terminal() || navigate == nil || r.closed {
		return false
	}
	if r.timer != nil {
		r.timer.Stop()
	}

	delay := out.Navigation.Delay
	if out.Navigation.Replace {
		delay = 0
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		r.mu.Lock()
		live := !r.closed && r.timer == t
		r.mu.Unlock()
		if live {
			navigate(out.Navigation.Target)
		}
	})
	r.timer = t
	return true
}

// Close cancels any scheduled navigation. It is safe to call more than once.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
