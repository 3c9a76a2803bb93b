package documents

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Upload field names arrive as composite strings encoding which traveler a
// document belongs to: "primaryTraveler_passportCopy",
// "subTraveler_<uuid>_studentId" for an existing sub-traveler, or
// "subTraveler_new1_passportCopy" for a sub-traveler added in the same
// request. ParseFieldName splits them once into a structured scope so no
// other code matches on raw field names.

type ScopeKind int

const (
	ScopePrimary ScopeKind = iota
	ScopeExisting
	ScopeNew
)

type FieldScope struct {
	Kind          ScopeKind
	SubTravelerID uuid.UUID // set when Kind == ScopeExisting
	TempID        string    // set when Kind == ScopeNew, e.g. "new1"
}

type ParsedField struct {
	Scope       FieldScope
	DocumentKey string
}

const (
	primaryPrefix     = "primaryTraveler_"
	subTravelerPrefix = "subTraveler_"
	newIDPrefix       = "new"
)

func ParseFieldName(field string) (ParsedField, error) {
	if key, ok := strings.CutPrefix(field, primaryPrefix); ok {
		if key == "" {
			return ParsedField{}, fmt.Errorf("field %q has no document key", field)
		}
		return ParsedField{Scope: FieldScope{Kind: ScopePrimary}, DocumentKey: key}, nil
	}

	rest, ok := strings.CutPrefix(field, subTravelerPrefix)
	if !ok {
		return ParsedField{}, fmt.Errorf("field %q has no traveler scope prefix", field)
	}
	ident, key, ok := strings.Cut(rest, "_")
	if !ok || ident == "" || key == "" {
		return ParsedField{}, fmt.Errorf("field %q is not of the form subTraveler_<id>_<documentKey>", field)
	}

	if strings.HasPrefix(ident, newIDPrefix) {
		return ParsedField{Scope: FieldScope{Kind: ScopeNew, TempID: ident}, DocumentKey: key}, nil
	}
	id, err := uuid.Parse(ident)
	if err != nil {
		return ParsedField{}, fmt.Errorf("field %q: sub-traveler id %q is not a uuid", field, ident)
	}
	return ParsedField{Scope: FieldScope{Kind: ScopeExisting, SubTravelerID: id}, DocumentKey: key}, nil
}
