package model

import "strings"

const (
	tagPrefix      = "medicine-"
	reminderPrefix = "reminder-"
)

func Tag(id string) string {
	return tagPrefix + id
}

func ReminderTag(id string) string {
	return tagPrefix + reminderPrefix + id
}

// MedicineIDFromTag accepts a bare id, a reminder tag or a follow-up tag.
func MedicineIDFromTag(tag string) string {
	id := strings.TrimPrefix(tag, tagPrefix)
	return strings.TrimPrefix(id, reminderPrefix)
}
