// Package backfill copies whole tables from one store to another.
//
// A backfill is an explicit operator action used to seed a newly enabled
// store or to repair drift after failed replication attempts. It is never
// started by the router and failed rows are not retried; they are listed in
// the report so the operator can run it again.
//
// Tables are copied in dependency order, parents first, and each row is
// upserted by id so repeated runs converge. Foreign key columns registered in
// the strip rules are removed before writing to avoid constraint errors on a
// target that does not hold the referenced rows yet.
//
//	syncer := backfill.New(backfill.WithLogger(logger))
//	report, err := syncer.Run(ctx, managed, selfHosted)
package backfill
