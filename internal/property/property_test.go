package property

import (
	"errors"
	"strings"
	"testing"
)

func sampleProperty() Property {
	return Property{
		ID:      "prop-1",
		Name:    "Seaside Cottage",
		Address: "1 Harbour Rd",
		RoomTasks: []RoomTask{
			{
				RoomType:      "  Kitchen ",
				EstimatedTime: "30 min",
				Tasks: []Task{
					{Description: "Wipe counters", EstimatedTime: "5 min"},
					{Description: "Clean sink", EstimatedTime: "5 min", SpecialNotes: "use descaler"},
				},
				SpecialInstructions: []string{"No bleach on granite"},
				FragileItems:        []string{"glass jars"},
			},
			{
				RoomType: "Living   Room",
				Tasks:    []Task{{Description: "Vacuum rug"}},
			},
		},
	}
}

func TestNormalizeRoom(t *testing.T) {
	cases := map[string]string{
		"Kitchen":          "kitchen",
		"  LIVING   room ": "living room",
		"":                 "",
	}
	for in, want := range cases {
		if got := NormalizeRoom(in); got != want {
			t.Fatalf("NormalizeRoom(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeMergesDuplicateRooms(t *testing.T) {
	p := sampleProperty()
	p.RoomTasks = append(p.RoomTasks, RoomTask{RoomType: "KITCHEN", Tasks: []Task{{Description: "Mop floor"}}})
	got, err := Normalize(p)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	rooms := got.Rooms()
	if len(rooms) != 2 || rooms[0] != "kitchen" || rooms[1] != "living room" {
		t.Fatalf("unexpected rooms %v", rooms)
	}
	if len(got.RoomTasks[0].Tasks) != 3 {
		t.Fatalf("expected merged kitchen tasks, got %d", len(got.RoomTasks[0].Tasks))
	}
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	if _, err := Normalize(Property{ID: "p"}); !errors.Is(err, ErrInvalidProperty) {
		t.Fatalf("expected invalid property for no rooms, got %v", err)
	}
	if _, err := Normalize(Property{RoomTasks: []RoomTask{{RoomType: "kitchen"}}}); !errors.Is(err, ErrInvalidProperty) {
		t.Fatalf("expected invalid property for missing id, got %v", err)
	}
	if _, err := Normalize(Property{ID: "p", RoomTasks: []RoomTask{{RoomType: "  "}}}); !errors.Is(err, ErrInvalidProperty) {
		t.Fatalf("expected invalid property for blank room, got %v", err)
	}
}

func TestResolveManualText(t *testing.T) {
	p, err := Normalize(sampleProperty())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	req, ok := ResolveManual(p, "KITCHEN")
	if !ok {
		t.Fatalf("expected kitchen to resolve")
	}
	want := strings.Join([]string{
		"Wipe counters (5 min)",
		"Clean sink (5 min) - use descaler",
		"Special Instructions: No bleach on granite",
		"Fragile Items: glass jars",
	}, "\n")
	if got := req.Text(); got != want {
		t.Fatalf("unexpected manual text:\n%s", got)
	}
	if _, ok := ResolveManual(p, "garage"); ok {
		t.Fatalf("did not expect garage to resolve")
	}
}

func TestKeyTasks(t *testing.T) {
	p, _ := Normalize(sampleProperty())
	req, _ := ResolveManual(p, "kitchen")
	got := req.KeyTasks()
	if !strings.HasPrefix(got, "Tasks for kitchen (Estimated time: 30 min):") {
		t.Fatalf("unexpected header: %q", got)
	}
	if !strings.Contains(got, "- Clean sink") || !strings.Contains(got, "- No bleach on granite") {
		t.Fatalf("expected tasks and instructions, got %q", got)
	}
	if (Requirements{}).KeyTasks() != "Follow the manual requirements for this room." {
		t.Fatalf("expected fallback text for empty requirements")
	}
}

func TestOverview(t *testing.T) {
	p, _ := Normalize(sampleProperty())
	got := Overview(p)
	for _, want := range []string{"Welcome to Seaside Cottage!", "1. KITCHEN (30 min): 2 tasks", "2. LIVING ROOM: 1 task\n", "fragile: glass jars"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected overview to contain %q, got:\n%s", want, got)
		}
	}
}
