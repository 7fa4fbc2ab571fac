// Package indexer imports a directory of notes and source files into the
// memory store.
//
// # Basic Usage
//
//	idx := indexer.New(store, memoryService, &logger)
//
//	stats, err := idx.Import(ctx, "/path/to/docs", &indexer.Config{
//	    TaskID:      "auth-42",
//	    ContentType: types.ContentDocumentation,
//	})
//
//	fmt.Printf("Imported %d files (%d memories) in %v\n",
//	    stats.FilesImported, stats.MemoriesCreated, stats.Duration)
//
// # Pipeline
//
//  1. Discovery: walk the tree, skip hidden, vendor and node_modules
//     directories, keep files with a configured extension
//  2. Incremental decision: compare the file's SHA-256 with the stored
//     source record, skip unchanged files
//  3. Chunk: pack blank-line separated blocks into chunks of at most
//     MaxChunkTokens estimated tokens
//  4. Remember: each chunk goes through the ingestion service, which
//     extracts features and embeds through the shared cache
//  5. Replace: memories from the previous version of the file are archived
//     and the source record is updated
//
// # Concurrent Processing
//
// Files are processed by an errgroup limited to Config.Workers goroutines.
// A failing file is recorded in Statistics.ErrorMessages and the import
// continues; cancelling the context stops it.
//
// Only one import runs at a time per Indexer. A concurrent call returns
// ErrImportInProgress immediately.
package indexer
