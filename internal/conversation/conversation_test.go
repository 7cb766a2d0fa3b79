package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"propertysanta/engine/internal/llm"
	"propertysanta/engine/internal/property"
)

type fakeModel struct {
	reply    string
	err      error
	messages []llm.Message
}

func (f *fakeModel) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

func testSnapshot() Snapshot {
	p, _ := property.Normalize(property.Property{
		ID:   "prop-1",
		Name: "Seaside Cottage",
		RoomTasks: []property.RoomTask{
			{RoomType: "kitchen", Tasks: []property.Task{{Description: "Wipe counters"}}},
			{RoomType: "bathroom", Tasks: []property.Task{{Description: "Scrub tub"}}},
		},
	})
	return Snapshot{
		Property:    p,
		Phase:       "after_requested",
		Before:      []string{"kitchen", "bathroom"},
		After:       []string{"kitchen"},
		CurrentRoom: "bathroom",
		Scores: []RoomScore{
			{RoomType: "kitchen", OverallScore: 85, ManualComplianceScore: 90, FinalScore: 87, Grade: "A-"},
		},
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		h.Add(fmt.Sprintf("msg %d", i), SenderUser, base.Add(time.Duration(i)*time.Second))
	}
	if h.Len() != DefaultHistoryLimit {
		t.Fatalf("expected %d entries, got %d", DefaultHistoryLimit, h.Len())
	}
	entries := h.Entries()
	if entries[0].Message != "msg 10" || entries[49].Message != "msg 59" {
		t.Fatalf("unexpected window %q..%q", entries[0].Message, entries[49].Message)
	}
	last := h.Last(3)
	if len(last) != 3 || last[2].Message != "msg 59" {
		t.Fatalf("unexpected last entries %#v", last)
	}
	last[0].Message = "mutated"
	if h.Last(3)[0].Message == "mutated" {
		t.Fatalf("Last should return a copy")
	}
	h.Clear()
	if h.Len() != 0 {
		t.Fatalf("expected cleared history")
	}
}

func TestHelperBarePhase(t *testing.T) {
	reply, ok := Helper(testSnapshot(), "AFTER")
	if !ok || reply != "Ready for the BATHROOM AFTER photo. Please upload it now." {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestHelperScoreInfoUsesActualScores(t *testing.T) {
	reply, ok := Helper(testSnapshot(), "what's my score so far?")
	if !ok {
		t.Fatalf("expected a deterministic reply")
	}
	if !strings.Contains(reply, "KITCHEN: final 87 (A-)") || !strings.Contains(reply, "Average final score: 87") {
		t.Fatalf("unexpected score info %q", reply)
	}
	empty := testSnapshot()
	empty.Scores = nil
	reply, _ = Helper(empty, "score?")
	if !strings.HasPrefix(reply, "No scores yet") {
		t.Fatalf("expected no-score reply, got %q", reply)
	}
}

func TestHelperStatusAndNextSteps(t *testing.T) {
	snap := testSnapshot()
	status, ok := Helper(snap, "status please")
	if !ok || !strings.Contains(status, "Photos logged: 2/2 before, 1/2 after") {
		t.Fatalf("unexpected status %q", status)
	}
	next, ok := Helper(snap, "what next?")
	if !ok || !strings.Contains(next, "BATHROOM") {
		t.Fatalf("unexpected next steps %q", next)
	}
	snap.SummaryText = "Property: Seaside Cottage"
	summary, ok := Helper(snap, "show me the summary")
	if !ok || summary != snap.SummaryText {
		t.Fatalf("expected summary text, got %q", summary)
	}
}

func TestReplyUsesModelWithLastTenTurns(t *testing.T) {
	snap := testSnapshot()
	for i := 0; i < 15; i++ {
		snap.History = append(snap.History, Entry{Message: fmt.Sprintf("turn %d", i), Sender: SenderUser})
	}
	snap.History = append(snap.History, Entry{Message: "tell me a joke", Sender: SenderUser})
	model := &fakeModel{reply: "  Why did the mop quit? It was wiped out.  "}
	r := NewResponder(model, time.Second, nil)
	reply := r.Reply(context.Background(), snap, "tell me a joke")
	if reply != "Why did the mop quit? It was wiped out." {
		t.Fatalf("unexpected reply %q", reply)
	}
	// system + 10 history turns; the current message is already the last turn.
	if len(model.messages) != 11 {
		t.Fatalf("expected 11 messages, got %d", len(model.messages))
	}
	system := model.messages[0].Content
	if !strings.Contains(system, "kitchen: 85/100 (manual compliance 90%), final 87 A-") {
		t.Fatalf("expected actual scoring data in prompt:\n%s", system)
	}
	if model.messages[10].Content != "tell me a joke" {
		t.Fatalf("expected current message last, got %q", model.messages[10].Content)
	}
}

func TestReplyFallsBackWhenModelFails(t *testing.T) {
	r := NewResponder(&fakeModel{err: errors.New("boom")}, time.Second, nil)
	reply := r.Reply(context.Background(), testSnapshot(), "help me")
	if !strings.Contains(reply, "log BEFORE and AFTER photos") {
		t.Fatalf("unexpected fallback %q", reply)
	}
	noModel := NewResponder(nil, 0, nil)
	reply = noModel.Reply(context.Background(), testSnapshot(), "hello")
	found := false
	for _, candidate := range fallbackReplies {
		if reply == candidate {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a canned fallback, got %q", reply)
	}
}
