package host

// Listener receives the events of a run. Calls are made from the goroutine
// executing the cases.
type Listener interface {
	OnTestStart(c Case)
	OnTestEnd(c Case, result Result)
	OnRunEnd(summary Summary)
}

// Listeners is the event pipeline of a host, in append order.
type Listeners struct {
	listeners []Listener
}

func (l *Listeners) Append(listener Listener) {
	l.listeners = append(l.listeners, listener)
}

func (l *Listeners) Len() int {
	return len(l.listeners)
}

func (l *Listeners) testStart(c Case) {
	for _, listener := range l.listeners {
		listener.OnTestStart(c)
	}
}

func (l *Listeners) testEnd(c Case, result Result) {
	for _, listener := range l.listeners {
		listener.OnTestEnd(c, result)
	}
}

func (l *Listeners) runEnd(summary Summary) {
	for _, listener := range l.listeners {
		listener.OnRunEnd(summary)
	}
}
