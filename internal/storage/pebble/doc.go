// Package pebblestore wraps Pebble with an fsync policy, transactional
// Update/View helpers and a metrics hook. The coordination store engine in
// internal/store/pebblekv is layered on it.
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	// read-check-write: the indexed batch sees its own writes
//	err = db.Update(ctx, func(b *pebble.Batch) error {
//	    if _, closer, err := b.Get([]byte("k")); err == nil {
//	        return closer.Close()
//	    }
//	    return b.Set([]byte("k"), []byte("v"), nil)
//	})
package pebblestore
