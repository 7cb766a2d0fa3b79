package property

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidProperty = errors.New("invalid property")

// Task is a single required cleaning step for a room.
type Task struct {
	Description   string `json:"description" yaml:"description"`
	EstimatedTime string `json:"estimated_time,omitempty" yaml:"estimated_time,omitempty"`
	SpecialNotes  string `json:"special_notes,omitempty" yaml:"special_notes,omitempty"`
	IsCompleted   bool   `json:"is_completed,omitempty" yaml:"is_completed,omitempty"`
}

// RoomTask is the manual for one room.
type RoomTask struct {
	RoomType            string   `json:"room_type" yaml:"room_type"`
	EstimatedTime       string   `json:"estimated_time,omitempty" yaml:"estimated_time,omitempty"`
	Tasks               []Task   `json:"tasks" yaml:"tasks"`
	SpecialInstructions []string `json:"special_instructions,omitempty" yaml:"special_instructions,omitempty"`
	FragileItems        []string `json:"fragile_items,omitempty" yaml:"fragile_items,omitempty"`
}

// Property is the read-only record a job is run against.
type Property struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Address   string     `json:"address,omitempty" yaml:"address,omitempty"`
	RoomTasks []RoomTask `json:"room_tasks" yaml:"room_tasks"`
}

// NormalizeRoom returns the canonical form of a room type: trimmed,
// lower-cased, inner whitespace collapsed to single spaces.
func NormalizeRoom(roomType string) string {
	return strings.Join(strings.Fields(strings.ToLower(roomType)), " ")
}

// Normalize canonicalizes every room type and merges rooms that collapse to
// the same canonical name, keeping first-seen order.
func Normalize(p Property) (Property, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return Property{}, fmt.Errorf("%w: id is required", ErrInvalidProperty)
	}
	merged := make([]RoomTask, 0, len(p.RoomTasks))
	index := make(map[string]int, len(p.RoomTasks))
	for _, rt := range p.RoomTasks {
		room := NormalizeRoom(rt.RoomType)
		if room == "" {
			return Property{}, fmt.Errorf("%w: room type is required", ErrInvalidProperty)
		}
		rt.RoomType = room
		if i, ok := index[room]; ok {
			existing := &merged[i]
			existing.Tasks = append(existing.Tasks, rt.Tasks...)
			existing.SpecialInstructions = append(existing.SpecialInstructions, rt.SpecialInstructions...)
			existing.FragileItems = append(existing.FragileItems, rt.FragileItems...)
			continue
		}
		index[room] = len(merged)
		merged = append(merged, rt)
	}
	if len(merged) == 0 {
		return Property{}, fmt.Errorf("%w: property %s has no rooms", ErrInvalidProperty, p.ID)
	}
	p.RoomTasks = merged
	return p, nil
}

// Rooms lists the property's canonical room types in manual order.
func (p Property) Rooms() []string {
	rooms := make([]string, 0, len(p.RoomTasks))
	for _, rt := range p.RoomTasks {
		rooms = append(rooms, rt.RoomType)
	}
	return rooms
}

// Room finds a room by type, case-insensitively.
func (p Property) Room(roomType string) (RoomTask, bool) {
	want := NormalizeRoom(roomType)
	for _, rt := range p.RoomTasks {
		if NormalizeRoom(rt.RoomType) == want {
			return rt, true
		}
	}
	return RoomTask{}, false
}

func (p Property) HasRoom(roomType string) bool {
	_, ok := p.Room(roomType)
	return ok
}
