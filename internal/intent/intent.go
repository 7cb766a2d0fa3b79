// Package intent extracts a room type and photo phase from free-form chat
// text.
//
// Confidence values are fixed rule tiers, not calibrated probabilities: 0.9
// for a direct keyword, 0.7 for a weak secondary cue, 0 for no match. They
// only order which source of information wins.
package intent

import (
	"sort"
	"strings"
	"unicode"

	"propertysanta/engine/internal/property"
)

type PhotoType string

const (
	PhotoBefore  PhotoType = "before"
	PhotoAfter   PhotoType = "after"
	PhotoDuring  PhotoType = "during"
	PhotoUnknown PhotoType = "unknown"
)

const RoomUnknown = "unknown"

const (
	TierDirect = 0.9
	TierCue    = 0.7
	TierNone   = 0.0

	// TrustThreshold is the tier a classified slot must exceed to override
	// a value passed explicitly by the caller.
	TrustThreshold = 0.7
)

// ParsePhotoType maps caller input to a PhotoType, PhotoUnknown when it is not
// recognised.
func ParsePhotoType(s string) PhotoType {
	switch PhotoType(strings.ToLower(strings.TrimSpace(s))) {
	case PhotoBefore:
		return PhotoBefore
	case PhotoAfter:
		return PhotoAfter
	case PhotoDuring:
		return PhotoDuring
	}
	return PhotoUnknown
}

type Result struct {
	RoomType        string    `json:"room_type"`
	PhotoType       PhotoType `json:"photo_type"`
	Confidence      float64   `json:"confidence"`
	RoomConfidence  float64   `json:"room_confidence"`
	PhotoConfidence float64   `json:"photo_confidence"`
	Explanation     string    `json:"explanation"`
}

type rule struct {
	value    string
	keywords []string
}

var defaultRooms = []rule{
	{"bathroom", []string{"bathroom", "bath room", "restroom", "toilet", "shower", "bath"}},
	{"bedroom", []string{"master bedroom", "guest bedroom", "bedroom", "bed room", "bed"}},
	{"kitchen", []string{"kitchen", "cooking area", "stove", "sink", "counter"}},
	{"living room", []string{"living room", "livingroom", "sitting room", "tv room", "lounge", "living"}},
	{"dining room", []string{"dining room", "diningroom", "dining area", "dining", "table"}},
	{"office", []string{"office", "study", "work room", "desk"}},
	{"laundry room", []string{"laundry room", "laundry", "washer", "dryer"}},
	{"garage", []string{"garage", "car port", "carport", "parking"}},
	{"basement", []string{"basement", "cellar", "lower level"}},
	{"attic", []string{"attic", "loft", "upper level"}},
}

var defaultPhases = []rule{
	{string(PhotoBefore), []string{"before", "pre", "initial", "dirty", "messy"}},
	{string(PhotoAfter), []string{"after", "post", "final", "completed"}},
	{string(PhotoDuring), []string{"during", "in progress", "progress", "working", "mid"}},
}

var defaultCues = []rule{
	{string(PhotoAfter), []string{"clean", "cleaned", "finished", "done"}},
	{string(PhotoBefore), []string{"start", "starting", "begin", "beginning", "mess"}},
}

// Classifier matches messages against ordered keyword tables. The first
// matching rule wins, so more specific rules come first.
type Classifier struct {
	rooms  []rule
	phases []rule
	cues   []rule
}

func NewClassifier() *Classifier {
	return &Classifier{rooms: defaultRooms, phases: defaultPhases, cues: defaultCues}
}

// WithRooms returns a classifier that also recognises the given room types
// by name. Rooms missing from the built-in table are checked first, longest
// name first, so "guest bathroom" beats "bathroom".
func (c *Classifier) WithRooms(rooms ...string) *Classifier {
	known := map[string]bool{}
	for _, r := range c.rooms {
		known[r.value] = true
	}
	extra := []rule{}
	for _, room := range rooms {
		room = property.NormalizeRoom(room)
		if room == "" || known[room] {
			continue
		}
		known[room] = true
		extra = append(extra, rule{room, []string{room}})
	}
	sort.SliceStable(extra, func(i, j int) bool {
		return len(strings.Fields(extra[i].value)) > len(strings.Fields(extra[j].value))
	})
	out := *c
	out.rooms = append(extra, c.rooms...)
	return &out
}

// Classify never fails; when nothing is recognised the explanation asks the
// user for clarification.
func (c *Classifier) Classify(message string) Result {
	res := Result{RoomType: RoomUnknown, PhotoType: PhotoUnknown}
	text := normalizeText(message)
	if text == "" {
		res.Explanation = "No text was provided. Which room is this, and is it a before or after photo?"
		return res
	}

	if room, ok := firstMatch(c.rooms, text); ok {
		res.RoomType = room
		res.RoomConfidence = TierDirect
	}
	if phase, ok := firstMatch(c.phases, text); ok {
		res.PhotoType = PhotoType(phase)
		res.PhotoConfidence = TierDirect
	} else if phase, ok := firstMatch(c.cues, text); ok {
		res.PhotoType = PhotoType(phase)
		res.PhotoConfidence = TierCue
	}
	res.Confidence = combined(res.RoomConfidence, res.PhotoConfidence)
	res.Explanation = explain(res.RoomType, res.PhotoType)
	return res
}

// Resolve picks the room and photo type to act on. A classified slot above
// TrustThreshold overrides the explicit value; otherwise a non-empty explicit
// value wins; otherwise the classified value is used as is.
func Resolve(res Result, explicitRoom, explicitPhoto string) (string, PhotoType) {
	room := res.RoomType
	if res.RoomConfidence <= TrustThreshold {
		if r := property.NormalizeRoom(explicitRoom); r != "" {
			room = r
		}
	}
	photo := res.PhotoType
	if res.PhotoConfidence <= TrustThreshold {
		if p := ParsePhotoType(explicitPhoto); p != PhotoUnknown {
			photo = p
		}
	}
	return room, photo
}

// IsBarePhase reports whether the message is only a phase word such as
// "before" or "AFTER".
func IsBarePhase(message string) (PhotoType, bool) {
	p := ParsePhotoType(message)
	return p, p != PhotoUnknown
}

func combined(room, photo float64) float64 {
	switch {
	case room > 0 && photo > 0:
		if room < photo {
			return room
		}
		return photo
	case room > 0:
		return room
	default:
		return photo
	}
}

func firstMatch(rules []rule, text string) (string, bool) {
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, " "+kw+" ") {
				return r.value, true
			}
		}
	}
	return "", false
}

// normalizeText lower-cases the message and reduces it to space-separated
// words padded with a space on both ends for whole-word matching.
func normalizeText(message string) string {
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return ""
	}
	return " " + strings.Join(fields, " ") + " "
}

func explain(room string, photo PhotoType) string {
	switch {
	case room != RoomUnknown && photo != PhotoUnknown:
		msg := "This looks like a " + room + " " + string(photo) + " photo. "
		switch photo {
		case PhotoBefore:
			return msg + "I can see the starting state of the " + room + "."
		case PhotoAfter:
			return msg + "Let me assess the cleaning quality of the " + room + "."
		default:
			return msg + "Keep up the good work in the " + room + "."
		}
	case room != RoomUnknown:
		return "This looks like the " + room + ". Is it a before or after photo?"
	case photo != PhotoUnknown:
		return "This looks like a " + string(photo) + " photo. Which room is it?"
	}
	return "Which room is this, and is it a before or after photo?"
}
