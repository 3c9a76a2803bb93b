package documents

import (
	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/types"
)

// TravelerPatch carries a partial traveler update; nil fields are left
// untouched. Changing VisaType deactivates the previous type-specific
// bucket entirely (its refs become stale) and starts the new one empty.
type TravelerPatch struct {
	GivenName *string         `json:"givenName"`
	Surname   *string         `json:"surname"`
	Phone     *string         `json:"phone"`
	Email     *string         `json:"email"`
	Address   *string         `json:"address"`
	Notes     *string         `json:"notes"`
	VisaType  *types.VisaType `json:"visaType"`
}

func ApplyPatch(t *types.TravelerFields, p TravelerPatch) {
	if p.GivenName != nil {
		t.GivenName = *p.GivenName
	}
	if p.Surname != nil {
		t.Surname = *p.Surname
	}
	if p.Phone != nil {
		t.Phone = *p.Phone
	}
	if p.Email != nil {
		t.Email = *p.Email
	}
	if p.Address != nil {
		t.Address = *p.Address
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.VisaType != nil && *p.VisaType != t.VisaType {
		if oldKind, ok := t.ActiveBucketKind(); ok {
			t.SetBucket(oldKind, nil)
		}
		t.VisaType = *p.VisaType
	}
}

// ApplyDocuments classifies each uploaded ref against the traveler's visa
// type and places it into the matching bucket, replacing any previous slot
// occupant. Keys that do not classify are dropped silently.
func ApplyDocuments(t *types.TravelerFields, docs map[string]types.FileRef, log *logger.Logger) {
	for key, ref := range docs {
		kind, ok := Classify(t.VisaType, key)
		if !ok {
			if log != nil {
				log.Debug("dropping document that does not classify for traveler",
					"document_key", key, "visa_type", t.VisaType)
			}
			continue
		}
		bucket := t.Bucket(kind)
		if bucket == nil {
			bucket = types.DocumentBucket{}
		}
		bucket[key] = ref
		t.SetBucket(kind, bucket)
	}
}

// NormalizeBuckets enforces the single-active-bucket invariant on a
// traveler about to be persisted: the general bucket is always present,
// the active type-specific bucket is present (possibly empty), and every
// inactive type-specific bucket is unset rather than left empty.
func NormalizeBuckets(t *types.TravelerFields) {
	if t.GeneralDocuments == nil {
		t.GeneralDocuments = types.DocumentBucket{}
	}
	active, hasActive := t.ActiveBucketKind()
	for _, kind := range []types.BucketKind{
		types.BucketBusiness, types.BucketStudent, types.BucketJobHolder, types.BucketOther,
	} {
		if hasActive && kind == active {
			if t.Bucket(kind) == nil {
				t.SetBucket(kind, types.DocumentBucket{})
			}
			continue
		}
		t.SetBucket(kind, nil)
	}
}
