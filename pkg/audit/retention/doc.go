// Package retention prunes stored traces.
//
// A Pruner deletes records older than RetentionDays and, when MaxRecords is
// set, the oldest records beyond that count. With ArchiveBeforeDelete the
// pruned records are first written to a JSON file. Start runs Prune on the
// PruneSchedule cron expression until Stop is called or the context ends.
//
//	pruner := retention.NewPruner(store, &retention.Config{
//	    RetentionDays: 30,
//	    PruneSchedule: "0 3 * * *",
//	}, logger)
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
package retention
