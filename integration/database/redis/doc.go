// Package redis provides Redis client initialization, health checking and a
// clientstore.Storage implementation for the portal's per-browser state.
//
// Connect validates the URL, pings with exponential backoff and returns a ready
// *redis.Client:
//
//	client, err := redis.Connect(ctx, redis.Config{ConnectionURL: "redis://localhost:6379/0"})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	durable := redis.NewStorage(client, redis.WithKeyPrefix("evs:durable"))
//	shortLived := redis.NewStorage(client, redis.WithKeyPrefix("evs:tab"))
//
// Storage.SetMany writes all keys inside a MULTI/EXEC transaction, so the
// auth_token/user_data pair is never observed half-written.
//
// Errors returned by Connect and Healthcheck wrap the sentinel values in
// errors.go and can be checked with errors.Is.
package redis
