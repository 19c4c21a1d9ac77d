package services

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/calbot/internal/common"
	"github.com/dmitrijs2005/calbot/internal/server/models"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

func validateCredentials(email, password string) error {
	v := &common.ValidationError{}
	e := strings.TrimSpace(email)
	switch {
	case e == "":
		v.Add("email", "is required")
	case !strings.Contains(e, "@"):
		v.Add("email", "must be an email address")
	}
	if password == "" {
		v.Add("password", "is required")
	}
	return v.OrNil()
}

func validateGroupID(groupID string) error {
	if strings.TrimSpace(groupID) == "" {
		return common.NewValidationError("gid", "is required")
	}
	if uuid.Validate(groupID) != nil {
		return common.NewValidationError("gid", "must be a UUID")
	}
	return nil
}

func validateScheduleInput(in models.ScheduleInput) error {
	v := &common.ValidationError{}

	if strings.TrimSpace(in.Title) == "" {
		v.Add("title", "is required")
	}
	start := checkTimestamp(v, "start", in.Start, true)
	end := checkTimestamp(v, "end", in.End, true)
	checkRange(v, start, end)
	if in.RecurrenceRule != nil {
		checkRecurrence(v, *in.RecurrenceRule)
	}
	checkTimestampList(v, "exceptionDateList", in.ExceptionDateList)
	checkTimestampList(v, "doneOccurrences", in.DoneOccurrences)

	return v.OrNil()
}

// validatePatch checks only the fields the patch carries; the merged bag is
// checked separately by validateMerged.
func validatePatch(p models.SchedulePatch) error {
	v := &common.ValidationError{}

	if p.Title.Set && !p.Title.Null && strings.TrimSpace(p.Title.Value) == "" {
		v.Add("title", "must not be blank")
	}
	if p.Start.Set {
		if p.Start.Null {
			v.Add("start", "cannot be null")
		} else {
			checkTimestamp(v, "start", p.Start.Value, true)
		}
	}
	if p.End.Set {
		if p.End.Null {
			v.Add("end", "cannot be null")
		} else {
			checkTimestamp(v, "end", p.End.Value, true)
		}
	}
	if p.RecurrenceRule.Set && !p.RecurrenceRule.Null {
		checkRecurrence(v, p.RecurrenceRule.Value)
	}
	if p.ExceptionDateList.Set {
		checkTimestampList(v, "exceptionDateList", p.ExceptionDateList.Value)
	}
	if p.DoneOccurrences.Set {
		checkTimestampList(v, "doneOccurrences", p.DoneOccurrences.Value)
	}

	return v.OrNil()
}

func validateMerged(b models.ScheduleBag) error {
	v := &common.ValidationError{}
	checkRange(v, checkTimestamp(v, "start", b.Start, false), checkTimestamp(v, "end", b.End, false))
	return v.OrNil()
}

func checkTimestamp(v *common.ValidationError, field, value string, required bool) *time.Time {
	if value == "" {
		if required {
			v.Add(field, "is required")
		}
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		v.Add(field, "must be an RFC 3339 timestamp")
		return nil
	}
	return &t
}

func checkRange(v *common.ValidationError, start, end *time.Time) {
	if start != nil && end != nil && end.Before(*start) {
		v.Add("end", "must not precede start")
	}
}

func checkRecurrence(v *common.ValidationError, rule string) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return
	}
	rule = strings.TrimPrefix(rule, "RRULE:")
	if _, err := rrule.StrToROption(rule); err != nil {
		v.Add("recurrenceRule", "must be a valid RRULE")
	}
}

func checkTimestampList(v *common.ValidationError, field string, values []string) {
	for _, s := range values {
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			v.Add(field, "entries must be RFC 3339 timestamps")
			return
		}
	}
}
