// Package pg provides PostgreSQL connection management, goose migrations and a
// clientstore.Storage implementation backed by the client_storage table.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, logger); err != nil {
//		return err
//	}
//
//	durable := pg.NewStorage(pool)
//
// Migrations are embedded in the binary. Storage.SetMany runs inside a single
// transaction; when the context already carries a transaction (see WithTx) it
// is reused instead.
package pg
