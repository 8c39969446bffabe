// Package session implements the persisted session store and its one-shot
// hydration signal.
//
// A Store keeps the authenticated identity and bearer token in memory and
// writes them through to durable clientstore.Storage under the auth_token and
// user_data keys. Hydrate restores that pair exactly once per Store lifetime;
// consumers that branch on authentication must wait for the hydration signal
// first:
//
//	store := session.NewStore(durable, gateway, session.WithLogger(log))
//	store.Hydrate(ctx)
//
//	if store.IsAuthenticated() {
//		sess, _ := store.Current()
//		...
//	}
//
// Login and Logout persist before they return. A storage failure during Login
// leaves the previous state untouched; Logout clears memory unconditionally.
package session
