// Package guard decides whether a request may see a protected view.
//
// A Decision is one of three states. Loading means the session has not been
// restored yet, so nothing is rendered except a neutral placeholder.
// Redirecting carries the navigation target. Authorized renders the view.
//
// The guard holds no state of its own. Every decision is a pure read of a
// Source, normally a *session.Store:
//
//	g := guard.New()
//	if err := store.WaitHydrated(ctx); err != nil {
//		return err
//	}
//	d := g.Protect(store, "/customer/bookings", account.RoleCustomer)
//	switch d.State {
//	case guard.Redirecting:
//		http.Redirect(w, r, d.Target, http.StatusFound)
//	case guard.Authorized:
//		render(w)
//	}
//
// Await combines the two steps and blocks on hydration rather than polling.
package guard
