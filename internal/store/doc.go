// Package store owns everything the service keeps on disk: downloaded page
// images, finished documents and the job history.
//
// # Local Store
//
//	local := store.NewLocal(settings)
//	path := local.PagePath("12345", 3)      // {base_dir}/12345/3.jpg
//	pages, err := local.ListPages("12345")  // numeric order
//
// # Job History
//
// History records the last known state of every album production in BoltDB:
//
//	history, err := store.OpenHistory(settings.HistoryPath)
//	defer history.Close()
//
//	history.Update("12345", func(rec *store.JobRecord) {
//	    rec.Status = store.StatusProcessing
//	})
package store
