package conversation

import "time"

const (
	DefaultHistoryLimit = 50
	PromptMemory        = 10
)

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

type Entry struct {
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// History is a bounded chat log; the oldest entries are evicted first. It is
// advisory memory for prompts and never drives workflow state.
type History struct {
	limit   int
	entries []Entry
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

func (h *History) Add(message, sender string, at time.Time) {
	h.entries = append(h.entries, Entry{Message: message, Sender: sender, Timestamp: at})
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append([]Entry(nil), h.entries[over:]...)
	}
}

// Last returns a copy of the newest n entries.
func (h *History) Last(n int) []Entry {
	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	return append([]Entry{}, h.entries[len(h.entries)-n:]...)
}

func (h *History) Entries() []Entry {
	return h.Last(0)
}

func (h *History) Len() int {
	return len(h.entries)
}

func (h *History) Clear() {
	h.entries = nil
}
