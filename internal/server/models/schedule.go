package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultColorValue is the ARGB colour given to schedules created without one (blue).
const DefaultColorValue int64 = 4282557941

// ScheduleBag is the property bag stored for a schedule. Nullable fields are
// pointers; list fields are never nil once normalized.
type ScheduleBag struct {
	Title             *string  `json:"title"`
	Start             string   `json:"start"`
	End               string   `json:"end"`
	Location          *string  `json:"location"`
	IsAllDay          bool     `json:"isAllDay"`
	Note              *string  `json:"note"`
	ColorValue        int64    `json:"colorValue"`
	RecurrenceRule    *string  `json:"recurrenceRule"`
	ExceptionDateList []string `json:"exceptionDateList"`
	IsDone            bool     `json:"isDone"`
	DoneOccurrences   []string `json:"doneOccurrences"`
}

// ScheduleInput carries the fields accepted on create. Title, Start and End
// are required; everything else falls back to a default.
type ScheduleInput struct {
	Title             string   `json:"title"`
	Start             string   `json:"start"`
	End               string   `json:"end"`
	Location          *string  `json:"location"`
	IsAllDay          *bool    `json:"isAllDay"`
	Note              *string  `json:"note"`
	ColorValue        *int64   `json:"colorValue"`
	RecurrenceRule    *string  `json:"recurrenceRule"`
	ExceptionDateList []string `json:"exceptionDateList"`
	IsDone            *bool    `json:"isDone"`
	DoneOccurrences   []string `json:"doneOccurrences"`
}

// SchedulePatch is a partial update. See Optional for the absent/null rules.
type SchedulePatch struct {
	Title             Optional[string]   `json:"title,omitzero"`
	Start             Optional[string]   `json:"start,omitzero"`
	End               Optional[string]   `json:"end,omitzero"`
	Location          Optional[string]   `json:"location,omitzero"`
	IsAllDay          Optional[bool]     `json:"isAllDay,omitzero"`
	Note              Optional[string]   `json:"note,omitzero"`
	ColorValue        Optional[int64]    `json:"colorValue,omitzero"`
	RecurrenceRule    Optional[string]   `json:"recurrenceRule,omitzero"`
	ExceptionDateList Optional[[]string] `json:"exceptionDateList,omitzero"`
	IsDone            Optional[bool]     `json:"isDone,omitzero"`
	DoneOccurrences   Optional[[]string] `json:"doneOccurrences,omitzero"`
}

// Schedule is the API view of a stored schedule: keys, flattened bag, timestamps.
type Schedule struct {
	GroupID string `json:"gid"`
	ID      string `json:"uid"`
	ScheduleBag
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultScheduleBag returns a bag holding every default.
func DefaultScheduleBag() ScheduleBag {
	return ScheduleBag{
		ColorValue:        DefaultColorValue,
		ExceptionDateList: []string{},
		DoneOccurrences:   []string{},
	}
}

// NewScheduleBag fills defaults for every field the input leaves unset.
func NewScheduleBag(in ScheduleInput) ScheduleBag {
	b := DefaultScheduleBag()
	title := in.Title
	b.Title = &title
	b.Start = in.Start
	b.End = in.End
	b.Location = copyPtr(in.Location)
	b.Note = copyPtr(in.Note)
	b.RecurrenceRule = copyPtr(in.RecurrenceRule)
	if in.IsAllDay != nil {
		b.IsAllDay = *in.IsAllDay
	}
	if in.ColorValue != nil {
		b.ColorValue = *in.ColorValue
	}
	if in.IsDone != nil {
		b.IsDone = *in.IsDone
	}
	if in.ExceptionDateList != nil {
		b.ExceptionDateList = copyList(in.ExceptionDateList)
	}
	if in.DoneOccurrences != nil {
		b.DoneOccurrences = copyList(in.DoneOccurrences)
	}
	return b
}

// Apply merges p over b field by field and returns the result; b is not
// modified. An absent field keeps the stored value. An explicit null clears
// nullable fields and resets the others to their defaults. Null Start/End is
// rejected by validation before Apply is reached and is ignored here.
func (b ScheduleBag) Apply(p SchedulePatch) ScheduleBag {
	out := b.clone()

	if p.Title.Set {
		out.Title = p.Title.Ptr()
	}
	if p.Start.Set && !p.Start.Null {
		out.Start = p.Start.Value
	}
	if p.End.Set && !p.End.Null {
		out.End = p.End.Value
	}
	if p.Location.Set {
		out.Location = p.Location.Ptr()
	}
	if p.IsAllDay.Set {
		out.IsAllDay = p.IsAllDay.Value
	}
	if p.Note.Set {
		out.Note = p.Note.Ptr()
	}
	if p.ColorValue.Set {
		out.ColorValue = DefaultColorValue
		if !p.ColorValue.Null {
			out.ColorValue = p.ColorValue.Value
		}
	}
	if p.RecurrenceRule.Set {
		out.RecurrenceRule = p.RecurrenceRule.Ptr()
	}
	if p.ExceptionDateList.Set {
		out.ExceptionDateList = copyList(p.ExceptionDateList.Value)
	}
	if p.IsDone.Set {
		out.IsDone = p.IsDone.Value
	}
	if p.DoneOccurrences.Set {
		out.DoneOccurrences = copyList(p.DoneOccurrences.Value)
	}
	return out
}

func (b ScheduleBag) clone() ScheduleBag {
	out := b
	out.Title = copyPtr(b.Title)
	out.Location = copyPtr(b.Location)
	out.Note = copyPtr(b.Note)
	out.RecurrenceRule = copyPtr(b.RecurrenceRule)
	out.ExceptionDateList = copyList(b.ExceptionDateList)
	out.DoneOccurrences = copyList(b.DoneOccurrences)
	return out
}

// Encode serializes the bag for storage.
func (b ScheduleBag) Encode() (json.RawMessage, error) {
	out := b.clone()
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode schedule bag: %w", err)
	}
	return raw, nil
}

// DecodeScheduleBag parses a stored bag. Keys missing from the document get
// their defaults, so rows written by older versions still decode cleanly.
func DecodeScheduleBag(raw []byte) (ScheduleBag, error) {
	b := DefaultScheduleBag()
	if err := json.Unmarshal(raw, &b); err != nil {
		return ScheduleBag{}, fmt.Errorf("decode schedule bag: %w", err)
	}
	if b.ExceptionDateList == nil {
		b.ExceptionDateList = []string{}
	}
	if b.DoneOccurrences == nil {
		b.DoneOccurrences = []string{}
	}
	return b, nil
}

// ScheduleFromRow builds the API view from a stored row.
func ScheduleFromRow(row *Row) (*Schedule, error) {
	bag, err := DecodeScheduleBag(row.Bag)
	if err != nil {
		return nil, err
	}
	return &Schedule{
		GroupID:     row.GroupID,
		ID:          row.EntityID,
		ScheduleBag: bag,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// copyList never returns nil.
func copyList(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
