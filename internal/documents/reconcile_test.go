package documents

import (
	"testing"

	"github.com/google/uuid"

	"github.com/visaflow/visaflow-backend/internal/apperr"
	"github.com/visaflow/visaflow-backend/internal/types"
)

func strPtr(s string) *string { return &s }

func subTraveler(appID uuid.UUID, pos int, name string, vt types.VisaType) types.SubTraveler {
	return types.SubTraveler{
		ID:                uuid.New(),
		VisaApplicationID: appID,
		Position:          pos,
		TravelerFields: types.TravelerFields{
			GivenName:        name,
			Surname:          "Rahman",
			Phone:            "+8801000000000",
			Email:            name + "@example.com",
			Address:          "Dhaka",
			VisaType:         vt,
			GeneralDocuments: types.DocumentBucket{},
		},
	}
}

func TestGroupUploadsRoutesByScope(t *testing.T) {
	existingID := uuid.New()
	uploaded := map[string]types.FileRef{
		"primaryTraveler_passportCopy":                        ref("pp-1"),
		"subTraveler_" + existingID.String() + "_passportPhoto": ref("ph-1"),
		"subTraveler_new1_studentId":                          ref("si-1"),
	}

	got, err := GroupUploads(uploaded)
	if err != nil {
		t.Fatalf("GroupUploads: %v", err)
	}
	if got.Primary["passportCopy"].ID != "pp-1" {
		t.Fatalf("primary docs: want pp-1, got=%v", got.Primary)
	}
	if got.Existing[existingID]["passportPhoto"].ID != "ph-1" {
		t.Fatalf("existing docs: want ph-1, got=%v", got.Existing)
	}
	if got.New["new1"]["studentId"].ID != "si-1" {
		t.Fatalf("new docs: want si-1, got=%v", got.New)
	}
}

func TestGroupUploadsRejectsMalformedField(t *testing.T) {
	_, err := GroupUploads(map[string]types.FileRef{"passportCopy": ref("pp-1")})
	if err == nil {
		t.Fatalf("GroupUploads: want error, got nil")
	}
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("error kind: want=%v got=%v", apperr.KindValidation, apperr.KindOf(err))
	}
}

func TestReconcilePreservesOrderAndAppendsAdditions(t *testing.T) {
	appID := uuid.New()
	existing := []types.SubTraveler{
		subTraveler(appID, 0, "karim", types.VisaTypeStudent),
		subTraveler(appID, 1, "salma", types.VisaTypeBusiness),
	}
	additions := []TravelerAddition{
		{TempID: "new1", GivenName: "rafiq", Surname: "Islam", Phone: "+8801100000000", Email: "rafiq@example.com", Address: "Sylhet", VisaType: types.VisaTypeOther},
	}

	res, err := ReconcileSubTravelers(appID, existing, nil, additions, ScopedDocuments{}, nil)
	if err != nil {
		t.Fatalf("ReconcileSubTravelers: %v", err)
	}
	if len(res.SubTravelers) != 3 {
		t.Fatalf("merged count: want=3 got=%d", len(res.SubTravelers))
	}
	for i, want := range []string{"karim", "salma", "rafiq"} {
		if res.SubTravelers[i].GivenName != want {
			t.Fatalf("order[%d]: want=%s got=%s", i, want, res.SubTravelers[i].GivenName)
		}
	}
	added := res.SubTravelers[2]
	if added.Position != 2 {
		t.Fatalf("added position: want=2 got=%d", added.Position)
	}
	if added.ID == uuid.Nil || added.VisaApplicationID != appID {
		t.Fatalf("added identity not assigned: id=%s app=%s", added.ID, added.VisaApplicationID)
	}
	if !res.AddedIDs[added.ID] {
		t.Fatalf("AddedIDs missing %s", added.ID)
	}
	if len(res.ChangedIDs) != 0 {
		t.Fatalf("ChangedIDs: want empty, got=%v", res.ChangedIDs)
	}
	if len(res.Stale) != 0 {
		t.Fatalf("stale refs: want none, got=%v", res.Stale)
	}
}

func TestReconcileDuplicateUpdatesLastWins(t *testing.T) {
	appID := uuid.New()
	existing := []types.SubTraveler{subTraveler(appID, 0, "karim", types.VisaTypeStudent)}
	id := existing[0].ID

	updates := []TravelerUpdate{
		{SubTravelerID: id, Patch: TravelerPatch{Notes: strPtr("first")}},
		{SubTravelerID: id, Patch: TravelerPatch{Notes: strPtr("second")}},
	}

	res, err := ReconcileSubTravelers(appID, existing, updates, nil, ScopedDocuments{}, nil)
	if err != nil {
		t.Fatalf("ReconcileSubTravelers: %v", err)
	}
	if got := res.SubTravelers[0].Notes; got != "second" {
		t.Fatalf("notes: want=second got=%s", got)
	}
	if !res.ChangedIDs[id] {
		t.Fatalf("ChangedIDs missing %s", id)
	}
}

func TestReconcileDocumentReplacementYieldsStaleRef(t *testing.T) {
	appID := uuid.New()
	st := subTraveler(appID, 0, "karim", types.VisaTypeStudent)
	st.GeneralDocuments = types.DocumentBucket{"passportCopy": ref("pp-old")}
	st.StudentDocuments = types.DocumentBucket{}

	docs := ScopedDocuments{
		Existing: map[uuid.UUID]map[string]types.FileRef{
			st.ID: {"passportCopy": ref("pp-new"), "studentId": ref("si-1")},
		},
	}

	res, err := ReconcileSubTravelers(appID, []types.SubTraveler{st}, nil, nil, docs, nil)
	if err != nil {
		t.Fatalf("ReconcileSubTravelers: %v", err)
	}
	merged := res.SubTravelers[0]
	if merged.GeneralDocuments["passportCopy"].ID != "pp-new" {
		t.Fatalf("passportCopy: want=pp-new got=%v", merged.GeneralDocuments["passportCopy"])
	}
	if merged.StudentDocuments["studentId"].ID != "si-1" {
		t.Fatalf("studentId: want=si-1 got=%v", merged.StudentDocuments["studentId"])
	}
	got := staleIDs(res.Stale)
	if len(got) != 1 || !got["pp-old"] {
		t.Fatalf("stale refs: want={pp-old} got=%v", got)
	}
	// the input row must stay untouched so the stale diff sees the old state
	if st.GeneralDocuments["passportCopy"].ID != "pp-old" {
		t.Fatalf("input mutated: %v", st.GeneralDocuments)
	}
}

func TestReconcileUnknownUpdateTargetIsNotFound(t *testing.T) {
	appID := uuid.New()
	updates := []TravelerUpdate{{SubTravelerID: uuid.New(), Patch: TravelerPatch{Notes: strPtr("x")}}}

	_, err := ReconcileSubTravelers(appID, nil, updates, nil, ScopedDocuments{}, nil)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("error kind: want=%v got=%v (%v)", apperr.KindNotFound, apperr.KindOf(err), err)
	}
}

func TestReconcileUnknownDocumentTargetIsNotFound(t *testing.T) {
	appID := uuid.New()
	docs := ScopedDocuments{
		Existing: map[uuid.UUID]map[string]types.FileRef{uuid.New(): {"passportCopy": ref("pp-1")}},
	}
	_, err := ReconcileSubTravelers(appID, nil, nil, nil, docs, nil)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("error kind: want=%v got=%v (%v)", apperr.KindNotFound, apperr.KindOf(err), err)
	}
}

func TestReconcileUnmatchedTempIDIsValidation(t *testing.T) {
	appID := uuid.New()
	docs := ScopedDocuments{
		New: map[string]map[string]types.FileRef{"new9": {"passportCopy": ref("pp-1")}},
	}
	_, err := ReconcileSubTravelers(appID, nil, nil, nil, docs, nil)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("error kind: want=%v got=%v (%v)", apperr.KindValidation, apperr.KindOf(err), err)
	}
}

func TestReconcileIdenticalReplayIsIdempotent(t *testing.T) {
	appID := uuid.New()
	st := subTraveler(appID, 0, "karim", types.VisaTypeStudent)
	st.StudentDocuments = types.DocumentBucket{"studentId": ref("si-1")}
	updates := []TravelerUpdate{{SubTravelerID: st.ID, Patch: TravelerPatch{Notes: strPtr("updated")}}}

	first, err := ReconcileSubTravelers(appID, []types.SubTraveler{st}, updates, nil, ScopedDocuments{}, nil)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	second, err := ReconcileSubTravelers(appID, first.SubTravelers, updates, nil, ScopedDocuments{}, nil)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if len(second.Stale) != 0 {
		t.Fatalf("replay stale refs: want none, got=%v", second.Stale)
	}
	if second.SubTravelers[0].Notes != "updated" {
		t.Fatalf("replay notes: want=updated got=%s", second.SubTravelers[0].Notes)
	}
}
