package documents

import (
	"github.com/visaflow/visaflow-backend/internal/types"
)

// Fixed document key sets per bucket. General keys are accepted for every
// traveler; type-specific keys only when the traveler's visa type selects
// that bucket.
var bucketKeys = map[types.BucketKind][]string{
	types.BucketGeneral: {
		"passportCopy", "passportPhoto", "bankStatement", "bankSolvency",
		"visitingCard", "hotelBooking", "airTicket",
	},
	types.BucketBusiness: {
		"tradeLicense", "notarizedId", "memorandum", "officePad",
	},
	types.BucketStudent: {
		"studentId", "travelLetter", "birthCertificate",
	},
	types.BucketJobHolder: {
		"nocCertificate", "officialId", "bmdcCertificate",
		"barCouncilCertificate", "retirementCertificate",
	},
	types.BucketOther: {
		"marriageCertificate",
	},
}

var keyOwner = func() map[string]types.BucketKind {
	owner := make(map[string]types.BucketKind)
	for kind, keys := range bucketKeys {
		for _, k := range keys {
			owner[k] = kind
		}
	}
	return owner
}()

// BucketKeys returns the fixed key set of a bucket kind.
func BucketKeys(kind types.BucketKind) []string {
	keys := bucketKeys[kind]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// KnownDocumentKey reports whether key belongs to any bucket.
func KnownDocumentKey(key string) bool {
	_, ok := keyOwner[key]
	return ok
}

// Classify maps a (visaType, documentKey) pair to the bucket the document
// belongs to. General keys classify unconditionally; a type-specific key
// classifies only when visaType selects its bucket. ok is false when the
// key is unknown or belongs to a bucket the traveler's visa type does not
// activate; callers drop such documents without error.
func Classify(visaType types.VisaType, documentKey string) (types.BucketKind, bool) {
	owner, known := keyOwner[documentKey]
	if !known {
		return "", false
	}
	if owner == types.BucketGeneral {
		return types.BucketGeneral, true
	}
	active, ok := types.BucketForVisaType(visaType)
	if !ok || active != owner {
		return "", false
	}
	return owner, true
}
