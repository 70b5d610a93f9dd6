package reconcile

// Diff returns a ClosedEvent for every trade that is closed in curr but
// was observed open in prev. Trades that were never seen open produce no
// event; replaying closures that predate the previous snapshot would
// flood reconnecting clients with ancient history.
//
// Events appear in curr's order, which the aggregator keeps
// deterministic. Runs in O(len(prev) + len(curr)).
func Diff(prev, curr []Trade) []ClosedEvent {
	if len(prev) == 0 || len(curr) == 0 {
		return nil
	}

	openBefore := make(map[int64]struct{}, len(prev))
	for i := range prev {
		if prev[i].IsOpen {
			openBefore[prev[i].LogicalTradeID] = struct{}{}
		}
	}

	var events []ClosedEvent
	for i := range curr {
		t := &curr[i]
		if t.IsOpen {
			continue
		}
		if _, ok := openBefore[t.LogicalTradeID]; !ok {
			continue
		}

		ev := ClosedEvent{
			LogicalTradeID: t.LogicalTradeID,
			Profit:         t.Profit,
		}
		if t.ClosePrice != nil {
			ev.ClosePrice = *t.ClosePrice
		}
		events = append(events, ev)
	}

	return events
}
