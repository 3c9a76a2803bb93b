package documents

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/visaflow/visaflow-backend/internal/apperr"
	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/types"
)

// TravelerAddition is a sub-traveler introduced by the current request. The
// temp id only routes uploaded files to this addition within the request;
// it is replaced by a persisted uuid at merge time and never stored.
type TravelerAddition struct {
	TempID    string         `json:"tempId"`
	GivenName string         `json:"givenName"`
	Surname   string         `json:"surname"`
	Phone     string         `json:"phone"`
	Email     string         `json:"email"`
	Address   string         `json:"address"`
	Notes     string         `json:"notes"`
	VisaType  types.VisaType `json:"visaType"`
}

func (a TravelerAddition) fields() types.TravelerFields {
	return types.TravelerFields{
		GivenName: a.GivenName,
		Surname:   a.Surname,
		Phone:     a.Phone,
		Email:     a.Email,
		Address:   a.Address,
		Notes:     a.Notes,
		VisaType:  a.VisaType,
	}
}

// TravelerUpdate targets an existing sub-traveler by its persisted id.
type TravelerUpdate struct {
	SubTravelerID uuid.UUID     `json:"id"`
	Patch         TravelerPatch `json:"data"`
}

// ScopedDocuments is the uploaded ref map regrouped by the traveler each
// document belongs to.
type ScopedDocuments struct {
	Primary  map[string]types.FileRef
	Existing map[uuid.UUID]map[string]types.FileRef
	New      map[string]map[string]types.FileRef
}

// GroupUploads parses every uploaded field name and routes its ref to the
// owning traveler scope. A malformed field name rejects the request.
func GroupUploads(uploaded map[string]types.FileRef) (ScopedDocuments, error) {
	out := ScopedDocuments{
		Primary:  map[string]types.FileRef{},
		Existing: map[uuid.UUID]map[string]types.FileRef{},
		New:      map[string]map[string]types.FileRef{},
	}
	for field, ref := range uploaded {
		parsed, err := ParseFieldName(field)
		if err != nil {
			return ScopedDocuments{}, apperr.Wrap(apperr.KindValidation, "invalid document field name", err)
		}
		switch parsed.Scope.Kind {
		case ScopePrimary:
			out.Primary[parsed.DocumentKey] = ref
		case ScopeExisting:
			m := out.Existing[parsed.Scope.SubTravelerID]
			if m == nil {
				m = map[string]types.FileRef{}
				out.Existing[parsed.Scope.SubTravelerID] = m
			}
			m[parsed.DocumentKey] = ref
		case ScopeNew:
			m := out.New[parsed.Scope.TempID]
			if m == nil {
				m = map[string]types.FileRef{}
				out.New[parsed.Scope.TempID] = m
			}
			m[parsed.DocumentKey] = ref
		}
	}
	return out, nil
}

type ReconcileResult struct {
	// SubTravelers is the merged list: carried-over and updated travelers
	// in their original relative order, additions appended after them in
	// submission order.
	SubTravelers []types.SubTraveler
	// Stale holds every ref displaced by the merge, due for blob deletion.
	Stale []types.FileRef
	// ChangedIDs marks existing sub-travelers whose rows must be written.
	ChangedIDs map[uuid.UUID]bool
	// AddedIDs marks sub-travelers that must be inserted.
	AddedIDs map[uuid.UUID]bool
}

// ReconcileSubTravelers merges the persisted sub-traveler list with the
// updates and additions of one request. Duplicate updates for the same id
// collapse (last wins), so replaying an identical update stays idempotent.
func ReconcileSubTravelers(
	appID uuid.UUID,
	existing []types.SubTraveler,
	updates []TravelerUpdate,
	additions []TravelerAddition,
	docs ScopedDocuments,
	log *logger.Logger,
) (ReconcileResult, error) {
	res := ReconcileResult{
		ChangedIDs: map[uuid.UUID]bool{},
		AddedIDs:   map[uuid.UUID]bool{},
	}

	byID := make(map[uuid.UUID]bool, len(existing))
	maxPos := -1
	for _, st := range existing {
		byID[st.ID] = true
		if st.Position > maxPos {
			maxPos = st.Position
		}
	}

	updateByID := make(map[uuid.UUID]TravelerPatch, len(updates))
	for _, u := range updates {
		if !byID[u.SubTravelerID] {
			return ReconcileResult{}, apperr.New(apperr.KindNotFound,
				fmt.Sprintf("sub-traveler %s not found", u.SubTravelerID))
		}
		updateByID[u.SubTravelerID] = u.Patch
	}
	for id := range docs.Existing {
		if !byID[id] {
			return ReconcileResult{}, apperr.New(apperr.KindNotFound,
				fmt.Sprintf("sub-traveler %s not found for uploaded document", id))
		}
	}

	additionByTemp := make(map[string]bool, len(additions))
	for _, a := range additions {
		if a.TempID == "" {
			return ReconcileResult{}, apperr.New(apperr.KindValidation, "new sub-traveler is missing a tempId")
		}
		if additionByTemp[a.TempID] {
			return ReconcileResult{}, apperr.New(apperr.KindValidation,
				fmt.Sprintf("duplicate tempId %q among new sub-travelers", a.TempID))
		}
		additionByTemp[a.TempID] = true
	}
	for tempID := range docs.New {
		if !additionByTemp[tempID] {
			return ReconcileResult{}, apperr.New(apperr.KindValidation,
				fmt.Sprintf("uploaded document references unknown tempId %q", tempID))
		}
	}

	for _, st := range existing {
		merged := st
		merged.TravelerFields = st.TravelerFields.Clone()

		patch, hasPatch := updateByID[st.ID]
		uploadedDocs := docs.Existing[st.ID]
		if hasPatch {
			ApplyPatch(&merged.TravelerFields, patch)
		}
		ApplyDocuments(&merged.TravelerFields, uploadedDocs, log)
		NormalizeBuckets(&merged.TravelerFields)

		if hasPatch || len(uploadedDocs) > 0 {
			res.Stale = append(res.Stale, CollectTravelerStale(&st.TravelerFields, &merged.TravelerFields)...)
			res.ChangedIDs[st.ID] = true
		}
		res.SubTravelers = append(res.SubTravelers, merged)
	}

	for i, a := range additions {
		added := types.SubTraveler{
			ID:                uuid.New(),
			VisaApplicationID: appID,
			Position:          maxPos + 1 + i,
			TravelerFields:    a.fields(),
		}
		ApplyDocuments(&added.TravelerFields, docs.New[a.TempID], log)
		NormalizeBuckets(&added.TravelerFields)
		res.AddedIDs[added.ID] = true
		res.SubTravelers = append(res.SubTravelers, added)
	}

	return res, nil
}
