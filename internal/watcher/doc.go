// Package watcher reports file changes under a directory tree as
// debounced batches, built on fsnotify.
//
// Rapid sequences for one path, as editors and git produce them, are
// coalesced before a batch is emitted. A Filter callback decides which
// paths are interesting; .gitignore edits are always reported so the
// consumer can refresh its ignore rules.
//
//	w, err := watcher.New(watcher.Options{Debounce: 500 * time.Millisecond})
//	if err != nil {
//	    return err
//	}
//	go func() { _ = w.Start(ctx, root) }()
//	for batch := range w.Events() {
//	    for _, ev := range batch {
//	        // ev.Path is relative to root, ev.Operation is Create, Modify or Delete
//	    }
//	}
package watcher
