// Package ics converts conference schedules to and from iCalendar.
package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hyperengineering/agenda"
)

// floatingLayout formats DTSTART/DTEND without a zone. Schedule times are
// conference-local wall-clock values.
const floatingLayout = "20060102T150405"

const prodID = "-//hyperengineering//agenda//EN"

// ParseSchedule reads VEVENTs from an ICS payload as scheduled items.
// All-day events and events without a UID or end are skipped. Each event is
// placed on its start date; times are kept as written, without conversion.
func ParseSchedule(r io.Reader) ([]agenda.ScheduledItem, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	items := make([]agenda.ScheduledItem, 0)
	for _, ve := range cal.Events() {
		item, err := scheduledItem(ve)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func scheduledItem(ve *ical.VEvent) (agenda.ScheduledItem, error) {
	var item agenda.ScheduledItem

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return item, errors.New("missing UID")
	}
	item.ID = uid.Value
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		item.Title = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || !strings.Contains(dtStart.Value, "T") {
		return item, errors.New("all-day or missing DTSTART")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return item, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return item, err
	}
	if !end.After(start) {
		return item, errors.New("event ends before it starts")
	}

	mins := int(end.Sub(start) / time.Minute)
	item.Days = []string{start.Format("2006-01-02")}
	item.StartTime = start.Format("15:04")
	item.Duration = fmt.Sprintf("%02d:%02d", mins/60, mins%60)
	return item, nil
}

// WriteCalendar writes items and the conflicts between them as a calendar.
// Multi-day items become one event per day. resolve maps day designators to
// dates; items on unresolvable days are left out.
func WriteCalendar(w io.Writer, items []agenda.ScheduledItem, conflicts []agenda.EventConflict, resolve agenda.DayResolver) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	stamp := time.Now().UTC()
	for _, item := range items {
		start, err := agenda.ParseClock(item.StartTime, 23)
		if err != nil {
			continue
		}
		dur, err := agenda.ParseClock(item.Duration, 99)
		if err != nil {
			continue
		}
		for _, day := range item.Days {
			date, err := resolve(day)
			if err != nil {
				continue
			}
			from := date.Add(time.Duration(start) * time.Minute)
			to := from.Add(time.Duration(dur) * time.Minute)

			ev := cal.AddEvent(eventUID(item.ID, day))
			ev.SetDtStampTime(stamp)
			setFloating(ev, from, to)
			ev.SetSummary(title(item))
		}
	}

	for _, c := range conflicts {
		ev := cal.AddEvent(eventUID("conflict-"+c.First.ID+"-"+c.Second.ID, c.Day))
		ev.SetDtStampTime(stamp)
		setFloating(ev, c.OverlapStart, c.OverlapEnd)
		ev.SetSummary(fmt.Sprintf("Conflict: %s / %s", title(c.First), title(c.Second)))
		ev.SetDescription(fmt.Sprintf("%s and %s overlap for %d minutes", title(c.First), title(c.Second), c.OverlapMinutes))
		ev.SetProperty(ical.ComponentPropertyCategories, "CONFLICT")
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

func setFloating(ev *ical.VEvent, from, to time.Time) {
	ev.SetProperty(ical.ComponentPropertyDtStart, from.Format(floatingLayout))
	ev.SetProperty(ical.ComponentPropertyDtEnd, to.Format(floatingLayout))
}

func eventUID(id, day string) string {
	return id + "@" + day + ".agenda"
}

func title(item agenda.ScheduledItem) string {
	if item.Title != "" {
		return item.Title
	}
	return item.ID
}
