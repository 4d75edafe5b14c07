package production

import (
	"time"

	"idlecraft/internal/eventbus"
	"idlecraft/internal/task/action"
	"idlecraft/internal/task/autorun"
	"idlecraft/internal/task/bonus"
)

func actionEvent(typ string, at time.Time, tk action.Ticket, d time.Duration) eventbus.Event {
	return eventbus.Event{
		Type: typ,
		Time: at,
		Data: eventbus.ActionData{Kind: string(tk.Type), ID: tk.Key, JobID: tk.JobID, Duration: d},
	}
}

var stepTypes = map[autorun.StepKind]string{
	autorun.StepStarted:   eventbus.AutoRunStarted,
	autorun.StepTick:      eventbus.AutoRunTick,
	autorun.StepEnded:     eventbus.AutoRunEnded,
	autorun.StepChained:   eventbus.AutoRunChained,
	autorun.StepCancelled: eventbus.AutoRunCancelled,
}

func stepEvent(st autorun.Step) eventbus.Event {
	return eventbus.Event{
		Type: stepTypes[st.Kind],
		Time: st.At,
		Data: eventbus.RunData{
			Source:  string(st.Source),
			RunID:   st.RunID,
			Drop:    st.Drop,
			XP:      st.XP,
			Ticks:   st.Ticks,
			Charges: st.Charges,
		},
	}
}

func (s *Service) cookEvents(rep bonus.Report, now time.Time) []eventbus.Event {
	var evs []eventbus.Event
	if rep.Cooked > 0 || rep.Skipped > 0 {
		evs = append(evs, eventbus.Event{Type: eventbus.AutoCookTick, Time: now, Data: eventbus.CookData{
			Raw: rep.Window.Locked, Item: rep.Item, Cooked: rep.Cooked, Skipped: rep.Skipped, Until: rep.Window.Until,
		}})
	}
	if rep.Closed {
		evs = append(evs, eventbus.Event{Type: eventbus.AutoCookClosed, Time: now, Data: eventbus.CookData{
			Raw: rep.Window.Locked, Cooked: rep.Window.Cooked, Until: rep.Window.Until,
		}})
	}
	return evs
}
