package audit

import "context"

// Store is the storage contract for day-partitioned audit events. A partition
// is identified by its UTC day key (YYYY-MM-DD) and is append-only: entries
// are never updated, and the only removal is dropping a whole partition.
//
// Append must be atomic at single-entry granularity; a concurrent reader may
// never observe a half-written entry. Serialization of appends within one
// partition is the recorder's job, not the store's.
type Store interface {
	// Append adds one event to the end of the partition, creating it if needed.
	Append(ctx context.Context, day string, event Event) error
	// LastHash returns the hash of the partition's last well-formed entry, or
	// GenesisHash when the partition is absent or empty.
	LastHash(ctx context.Context, day string) (string, error)
	// Read returns the partition's entries in append order together with the
	// number of malformed entries that were skipped. A missing partition is
	// not an error; it reads as empty.
	Read(ctx context.Context, day string) ([]Event, int, error)
	// Partitions lists existing day keys in ascending order.
	Partitions(ctx context.Context) ([]string, error)
	// DeletePartition removes a whole partition. Deleting a missing partition
	// is not an error.
	DeletePartition(ctx context.Context, day string) error
}
