// Package history derives audit entries from a proposed ticket change.
// Derivation is pure: ids and authoritative timestamps are assigned by the
// lifecycle manager at commit time, never here.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/tagworks/servicedesk/internal/models"
)

// Derivation is the result of diffing a proposed ticket state against the
// previous persisted state. Entries are ordered drafts; Note, if non-nil, is
// the single permitted append to the ticket's note list.
type Derivation struct {
	Entries []models.HistoryEntry
	Note    *models.Note
}

// Empty reports whether the proposed change is a no-op. The caller is
// expected to skip the write entirely in that case.
func (d Derivation) Empty() bool {
	return len(d.Entries) == 0
}

// comparedField is one member of the fixed DataEdited comparison set. The
// set and its order are stable: client name, client phone, client email,
// device name, reported fault, assignee, scheduled date.
type comparedField struct {
	label string
	value func(*models.ServiceItem) string
}

var comparedFields = []comparedField{
	{"Client name", func(t *models.ServiceItem) string { return t.ClientName }},
	{"Client phone", func(t *models.ServiceItem) string { return t.ClientPhone }},
	{"Client email", func(t *models.ServiceItem) string { return t.ClientEmail }},
	{"Device name", func(t *models.ServiceItem) string { return t.DeviceName }},
	{"Reported fault", func(t *models.ServiceItem) string { return t.ReportedFault }},
	{"Assigned to", func(t *models.ServiceItem) string { return t.AssignedToName }},
	{"Scheduled date", func(t *models.ServiceItem) string { return formatDate(t.NextServiceDate) }},
}

func formatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format("2006-01-02")
}

// Derive computes the ordered history-entry drafts implied by moving from
// previous (nil for a new ticket) to next, with an optional free-text note.
//
// Rules, in fixed order: a nil previous emits one Created entry and skips
// the diff rules; otherwise a status difference emits one StatusChanged
// entry with verbatim old and new values, and any change in the compared
// field set emits one DataEdited entry listing every changed field. A
// non-empty trimmed note always emits one NoteAdded entry plus the Note
// draft to append. An empty result means the caller must not write.
func Derive(previous *models.ServiceItem, next models.ServiceItem, noteText, actor string) Derivation {
	var d Derivation

	if previous == nil {
		d.Entries = append(d.Entries, models.HistoryEntry{
			Type:            models.HistoryCreated,
			Details:         createdDetails(&next),
			User:            actor,
			ServiceItemName: next.DeviceName,
		})
	} else {
		if previous.Status != next.Status {
			d.Entries = append(d.Entries, models.HistoryEntry{
				Type:            models.HistoryStatusChanged,
				Details:         fmt.Sprintf("Status changed from %q to %q.", previous.Status, next.Status),
				User:            actor,
				ServiceItemName: next.DeviceName,
			})
		}
		if details, changed := dataEditedDetails(previous, &next); changed {
			d.Entries = append(d.Entries, models.HistoryEntry{
				Type:            models.HistoryDataEdited,
				Details:         details,
				User:            actor,
				ServiceItemName: next.DeviceName,
			})
		}
	}

	if text := strings.TrimSpace(noteText); text != "" {
		d.Note = &models.Note{Text: text, User: actor}
		d.Entries = append(d.Entries, models.HistoryEntry{
			Type:            models.HistoryNoteAdded,
			Details:         fmt.Sprintf("Added note: %q", text),
			User:            actor,
			ServiceItemName: next.DeviceName,
		})
	}

	return d
}

func createdDetails(next *models.ServiceItem) string {
	if next.ClientName != "" {
		return fmt.Sprintf("Ticket created: %q for %s.", next.DeviceName, next.ClientName)
	}
	return fmt.Sprintf("Ticket created: %q.", next.DeviceName)
}

func dataEditedDetails(previous, next *models.ServiceItem) (string, bool) {
	var clauses []string
	for _, f := range comparedFields {
		oldVal, newVal := f.value(previous), f.value(next)
		if oldVal != newVal {
			clauses = append(clauses, fmt.Sprintf("'%s' changed from %q to %q", f.label, oldVal, newVal))
		}
	}
	if len(clauses) == 0 {
		return "", false
	}
	return strings.Join(clauses, ", "), true
}
