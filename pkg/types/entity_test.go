package types

import (
	"reflect"
	"testing"
)

func TestNormalizeAliasesDropsCanonicalName(t *testing.T) {
	e := &Entity{
		Name:    "Jennifer Smith",
		Aliases: []string{"Jen", "jennifer smith", "JEN", "Jenny"},
	}

	e.NormalizeAliases()

	want := []string{"Jen", "Jenny"}
	if !reflect.DeepEqual(e.Aliases, want) {
		t.Errorf("Aliases: got %v, want %v", e.Aliases, want)
	}
}

func TestNormalizeAliasesTrimsAndSkipsEmpty(t *testing.T) {
	e := &Entity{
		Name:    "Acme Corp",
		Aliases: []string{"  Acme  ", "", "acme", "   "},
	}

	e.NormalizeAliases()

	want := []string{"Acme"}
	if !reflect.DeepEqual(e.Aliases, want) {
		t.Errorf("Aliases: got %v, want %v", e.Aliases, want)
	}
}

func TestHasAlias(t *testing.T) {
	e := &Entity{Name: "Jennifer Smith", Aliases: []string{"Jen"}}

	if !e.HasAlias("jen") {
		t.Error("HasAlias(jen): got false, want true")
	}
	if e.HasAlias("Jennifer") {
		t.Error("HasAlias(Jennifer): got true, want false")
	}
}

func TestEntityTypeValidation(t *testing.T) {
	for _, typ := range ValidEntityTypes {
		if !IsValidEntityType(typ) {
			t.Errorf("IsValidEntityType(%q): got false, want true", typ)
		}
	}
	if IsValidEntityType("location") {
		t.Error("IsValidEntityType(location): got true, want false")
	}
}

func TestNormalizeRelationshipType(t *testing.T) {
	if got := NormalizeRelationshipType(RelWorksAt); got != RelWorksAt {
		t.Errorf("NormalizeRelationshipType(works_at): got %q", got)
	}
	if got := NormalizeRelationshipType("reports_to"); got != RelRelatesTo {
		t.Errorf("NormalizeRelationshipType(reports_to): got %q, want %q", got, RelRelatesTo)
	}
}

func TestIsValidSourceType(t *testing.T) {
	if !IsValidSourceType(SourceCalendarEvent) {
		t.Error("IsValidSourceType(calendar_event): got false, want true")
	}
	if IsValidSourceType("meeting") {
		t.Error("IsValidSourceType(meeting): got true, want false")
	}
}
