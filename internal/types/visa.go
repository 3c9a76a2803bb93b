package types

import (
	"time"

	"github.com/google/uuid"
)

// TravelerFields is the scalar + document state shared by the primary
// traveler (inlined on VisaApplication) and every sub-traveler. Exactly one
// type-specific bucket is live at a time, selected by VisaType; the general
// bucket is always present.
type TravelerFields struct {
	GivenName string   `gorm:"column:given_name;not null" json:"givenName"`
	Surname   string   `gorm:"column:surname;not null" json:"surname"`
	Phone     string   `gorm:"column:phone;not null" json:"phone"`
	Email     string   `gorm:"column:email;not null" json:"email"`
	Address   string   `gorm:"column:address;not null" json:"address"`
	Notes     string   `gorm:"column:notes" json:"notes,omitempty"`
	VisaType  VisaType `gorm:"column:visa_type;not null" json:"visaType"`

	GeneralDocuments   DocumentBucket `gorm:"column:general_documents;type:jsonb" json:"generalDocuments"`
	BusinessDocuments  DocumentBucket `gorm:"column:business_documents;type:jsonb" json:"businessDocuments,omitempty"`
	StudentDocuments   DocumentBucket `gorm:"column:student_documents;type:jsonb" json:"studentDocuments,omitempty"`
	JobHolderDocuments DocumentBucket `gorm:"column:job_holder_documents;type:jsonb" json:"jobHolderDocuments,omitempty"`
	OtherDocuments     DocumentBucket `gorm:"column:other_documents;type:jsonb" json:"otherDocuments,omitempty"`
}

// Bucket returns the bucket stored under kind (nil when unset).
func (t *TravelerFields) Bucket(kind BucketKind) DocumentBucket {
	switch kind {
	case BucketGeneral:
		return t.GeneralDocuments
	case BucketBusiness:
		return t.BusinessDocuments
	case BucketStudent:
		return t.StudentDocuments
	case BucketJobHolder:
		return t.JobHolderDocuments
	case BucketOther:
		return t.OtherDocuments
	}
	return nil
}

func (t *TravelerFields) SetBucket(kind BucketKind, b DocumentBucket) {
	switch kind {
	case BucketGeneral:
		t.GeneralDocuments = b
	case BucketBusiness:
		t.BusinessDocuments = b
	case BucketStudent:
		t.StudentDocuments = b
	case BucketJobHolder:
		t.JobHolderDocuments = b
	case BucketOther:
		t.OtherDocuments = b
	}
}

// ActiveBucketKind resolves the type-specific bucket selected by the
// traveler's visa type. ok is false when no visa type is assigned yet.
func (t *TravelerFields) ActiveBucketKind() (BucketKind, bool) {
	return BucketForVisaType(t.VisaType)
}

// Clone deep-copies the traveler state, including buckets.
func (t *TravelerFields) Clone() TravelerFields {
	out := *t
	out.GeneralDocuments = t.GeneralDocuments.Clone()
	out.BusinessDocuments = t.BusinessDocuments.Clone()
	out.StudentDocuments = t.StudentDocuments.Clone()
	out.JobHolderDocuments = t.JobHolderDocuments.Clone()
	out.OtherDocuments = t.OtherDocuments.Clone()
	return out
}

type VisaApplication struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TravelerFields `gorm:"embedded"`
	SubTravelers   []SubTraveler `gorm:"foreignKey:VisaApplicationID;references:ID;constraint:OnDelete:CASCADE" json:"subTravelers"`
	CreatedAt      time.Time     `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:now()" json:"updated_at"`
}

func (VisaApplication) TableName() string { return "visa_application" }

type SubTraveler struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VisaApplicationID uuid.UUID `gorm:"type:uuid;not null;index" json:"visa_application_id"`
	// Position preserves submission order: carried-over travelers keep
	// theirs, additions are appended after the current maximum.
	Position       int `gorm:"column:position;not null" json:"position"`
	TravelerFields `gorm:"embedded"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (SubTraveler) TableName() string { return "sub_traveler" }
