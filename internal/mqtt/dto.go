package mqtt

import (
	"github.com/tphakala/quack-go/internal/model"
)

// Announcement is the JSON payload published for a daily selection.
//
// Field names are part of the topic contract consumed by home automation
// rules; add fields rather than renaming them.
type Announcement struct {
	Name           string  `json:"name"`
	ScientificName *string `json:"scientificName"`
	Day            string  `json:"day"`   // "2026-03-14"
	Image          string  `json:"image"` // first image URL, empty when none
}

// NewAnnouncement builds the payload for e on day.
func NewAnnouncement(e *model.Entity, day string) Announcement {
	a := Announcement{
		Name:           e.Name,
		ScientificName: e.ScientificName,
		Day:            day,
	}
	if len(e.Images) > 0 {
		a.Image = e.Images[0]
	}
	return a
}
