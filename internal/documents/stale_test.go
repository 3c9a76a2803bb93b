package documents

import (
	"testing"

	"github.com/visaflow/visaflow-backend/internal/types"
)

func ref(id string) types.FileRef {
	return types.FileRef{URL: "https://storage.example.com/" + id, ID: id}
}

func staleIDs(refs []types.FileRef) map[string]bool {
	out := map[string]bool{}
	for _, r := range refs {
		out[r.ID] = true
	}
	return out
}

func TestCollectBucketStaleReplacedAndRemoved(t *testing.T) {
	old := types.DocumentBucket{
		"passportCopy":  ref("pp-1"),
		"bankStatement": ref("bs-1"),
		"airTicket":     ref("at-1"),
	}
	new := types.DocumentBucket{
		"passportCopy": ref("pp-2"), // replaced
		"airTicket":    ref("at-1"), // unchanged
	}

	got := staleIDs(CollectBucketStale(old, new))
	want := map[string]bool{"pp-1": true, "bs-1": true}
	if len(got) != len(want) {
		t.Fatalf("stale refs: want=%v got=%v", want, got)
	}
	for id := range want {
		if !got[id] {
			t.Fatalf("stale refs missing %s: got=%v", id, got)
		}
	}
}

func TestCollectBucketStaleNilTargetDropsWholeBucket(t *testing.T) {
	old := types.DocumentBucket{
		"tradeLicense": ref("tl-1"),
		"memorandum":   ref("mm-1"),
	}
	got := CollectBucketStale(old, nil)
	if len(got) != 2 {
		t.Fatalf("stale count: want=2 got=%d", len(got))
	}
}

func TestCollectTravelerStaleVisaTypeSwitch(t *testing.T) {
	old := types.TravelerFields{
		VisaType:          types.VisaTypeBusiness,
		GeneralDocuments:  types.DocumentBucket{"passportCopy": ref("pp-1")},
		BusinessDocuments: types.DocumentBucket{"tradeLicense": ref("tl-1"), "officePad": ref("op-1")},
	}

	new := old.Clone()
	vt := types.VisaTypeStudent
	ApplyPatch(&new, TravelerPatch{VisaType: &vt})
	ApplyDocuments(&new, map[string]types.FileRef{"studentId": ref("si-1")}, nil)
	NormalizeBuckets(&new)

	got := staleIDs(CollectTravelerStale(&old, &new))
	if !got["tl-1"] || !got["op-1"] {
		t.Fatalf("want whole business bucket stale after type switch, got=%v", got)
	}
	if got["pp-1"] {
		t.Fatalf("general bucket must survive a type switch, got=%v", got)
	}
	if len(got) != 2 {
		t.Fatalf("stale count: want=2 got=%d (%v)", len(got), got)
	}
}

func TestAllRefsCoversEveryBucket(t *testing.T) {
	tr := types.TravelerFields{
		VisaType:         types.VisaTypeOther,
		GeneralDocuments: types.DocumentBucket{"passportCopy": ref("pp-1"), "airTicket": ref("at-1")},
		OtherDocuments:   types.DocumentBucket{"marriageCertificate": ref("mc-1")},
	}
	got := AllRefs(&tr)
	if len(got) != 3 {
		t.Fatalf("AllRefs count: want=3 got=%d", len(got))
	}
}
