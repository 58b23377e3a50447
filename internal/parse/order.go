package parse

import (
	"sort"
	"time"
)

// SortMessages orders messages by timestamp, breaking ties by Seq. A message
// without a timestamp takes the effective time of the message before it (in
// Seq order), so it stays next to its neighbours instead of sinking to the
// front. The slice is sorted in place.
func SortMessages(msgs []Message) {
	if len(msgs) < 2 {
		return
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Seq < msgs[j].Seq })

	type keyed struct {
		eff time.Time
		msg Message
	}
	items := make([]keyed, len(msgs))

	// leading messages without a timestamp borrow the first known one
	var last time.Time
	for i := range msgs {
		if msgs[i].HasTimestamp() {
			last = msgs[i].Timestamp
			break
		}
	}
	for i := range msgs {
		if msgs[i].HasTimestamp() {
			last = msgs[i].Timestamp
		}
		items[i] = keyed{eff: last, msg: msgs[i]}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].eff.Equal(items[j].eff) {
			return items[i].eff.Before(items[j].eff)
		}
		return items[i].msg.Seq < items[j].msg.Seq
	})

	for i := range items {
		msgs[i] = items[i].msg
	}
}

// Renumber assigns Seq from the current slice order.
func Renumber(msgs []Message) {
	for i := range msgs {
		msgs[i].Seq = i
	}
}
