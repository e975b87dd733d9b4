package notifier

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

var reminderLines = []string{
	"Today isn't marked yet. There's still time.",
	"A small step today keeps the streak alive.",
	"Have you made progress today? Mark it when you do.",
	"Future you will thank you for today's effort.",
	"One more day closer. Don't let today slip by.",
}

var praiseLines = []string{
	"Nice work! Today is marked.",
	"Another day in the books. Keep it going!",
	"Consistency wins. Well done today.",
	"That's progress. See you tomorrow!",
	"Great job showing up today.",
}

// Messages picks notification text. The random source is injectable so the
// choice is reproducible in tests.
type Messages struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewMessages(rng *rand.Rand) *Messages {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Messages{rng: rng}
}

func (m *Messages) pick(lines []string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lines[m.rng.IntN(len(lines))]
}

// Reminder returns the title and body nudging the user to work on goalName.
func (m *Messages) Reminder(goalName string) (string, string) {
	return fmt.Sprintf("Reminder: %s", goalName), m.pick(reminderLines)
}

// Praise returns the title and body shown after today was marked.
func (m *Messages) Praise(goalName string) (string, string) {
	return fmt.Sprintf("%s: marked for today", goalName), m.pick(praiseLines)
}
