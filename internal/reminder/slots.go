package reminder

import "fmt"

// Slot is one daily reminder time. IDs are stable across restarts and
// double as the alarm tag.
type Slot struct {
	ID     string
	Hour   int
	Minute int
}

// Slots are the fixed daily reminder times, in firing order.
var Slots = []Slot{
	{ID: "reminder-14", Hour: 14},
	{ID: "reminder-17", Hour: 17},
	{ID: "reminder-20", Hour: 20},
}

func SlotByID(id string) (Slot, bool) {
	for _, s := range Slots {
		if s.ID == id {
			return s, true
		}
	}
	return Slot{}, false
}

func (s Slot) String() string {
	return fmt.Sprintf("%s (%02d:%02d)", s.ID, s.Hour, s.Minute)
}
