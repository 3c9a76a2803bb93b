package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FileRef points at an object in blob storage. URL is the public location,
// ID the storage key used for deletion. A FileRef is replaced, never
// mutated in place.
type FileRef struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

type VisaType string

const (
	VisaTypeNone      VisaType = ""
	VisaTypeBusiness  VisaType = "business"
	VisaTypeStudent   VisaType = "student"
	VisaTypeJobHolder VisaType = "jobHolder"
	VisaTypeOther     VisaType = "other"
)

func (v VisaType) Valid() bool {
	switch v {
	case VisaTypeBusiness, VisaTypeStudent, VisaTypeJobHolder, VisaTypeOther:
		return true
	}
	return false
}

type BucketKind string

const (
	BucketGeneral   BucketKind = "general"
	BucketBusiness  BucketKind = "business"
	BucketStudent   BucketKind = "student"
	BucketJobHolder BucketKind = "jobHolder"
	BucketOther     BucketKind = "other"
)

// BucketForVisaType maps a visa type to its type-specific document bucket.
func BucketForVisaType(v VisaType) (BucketKind, bool) {
	switch v {
	case VisaTypeBusiness:
		return BucketBusiness, true
	case VisaTypeStudent:
		return BucketStudent, true
	case VisaTypeJobHolder:
		return BucketJobHolder, true
	case VisaTypeOther:
		return BucketOther, true
	}
	return "", false
}

// DocumentBucket holds the uploaded file reference per document key. The
// valid key set per bucket kind is fixed (see internal/documents); a nil
// bucket means the bucket is unset for the traveler, which persists as a
// NULL jsonb column so readers only ever see the buckets relevant to the
// traveler's visa type.
type DocumentBucket map[string]FileRef

func (b DocumentBucket) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (b *DocumentBucket) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported document bucket column type %T", value)
	}
	if len(raw) == 0 {
		*b = nil
		return nil
	}
	out := DocumentBucket{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*b = out
	return nil
}

func (DocumentBucket) GormDataType() string { return "jsonb" }

// Clone returns a deep copy; nil stays nil.
func (b DocumentBucket) Clone() DocumentBucket {
	if b == nil {
		return nil
	}
	out := make(DocumentBucket, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
