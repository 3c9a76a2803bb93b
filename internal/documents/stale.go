package documents

import (
	"sort"

	"github.com/visaflow/visaflow-backend/internal/types"
)

// CollectBucketStale returns every ref in old whose key is gone from new
// or now holds a ref with a different storage id. Passing a nil new bucket
// marks the whole old bucket stale.
func CollectBucketStale(old, new types.DocumentBucket) []types.FileRef {
	if len(old) == 0 {
		return nil
	}
	keys := make([]string, 0, len(old))
	for k := range old {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var stale []types.FileRef
	for _, k := range keys {
		oldRef := old[k]
		if oldRef.ID == "" {
			continue
		}
		newRef, ok := new[k]
		if !ok || newRef.ID != oldRef.ID {
			stale = append(stale, oldRef)
		}
	}
	return stale
}

// CollectTravelerStale diffs a traveler's full document state. A visa type
// switch leaves the old type-specific bucket nil on the new state, so the
// per-bucket diff naturally marks that entire bucket stale.
func CollectTravelerStale(old, new *types.TravelerFields) []types.FileRef {
	var stale []types.FileRef
	for _, kind := range []types.BucketKind{
		types.BucketGeneral, types.BucketBusiness, types.BucketStudent,
		types.BucketJobHolder, types.BucketOther,
	} {
		stale = append(stale, CollectBucketStale(old.Bucket(kind), new.Bucket(kind))...)
	}
	return stale
}

// AllRefs returns every ref a traveler holds across all buckets, i.e. the
// stale set against an empty target state. Used when a traveler or a whole
// application is being destroyed.
func AllRefs(t *types.TravelerFields) []types.FileRef {
	return CollectTravelerStale(t, &types.TravelerFields{})
}
