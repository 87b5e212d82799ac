package ratelimiter

// Observer receives admission lifecycle events. Callbacks run on the
// admitting goroutine outside the gate lock and must not block.
type Observer interface {
	// OnAdmit signals a recorded admission.
	OnAdmit(rec RequestRecord)
	// OnWait signals that an admission attempt must wait d.Wait.
	OnWait(endpoint string, d Decision)
	// OnCancel signals an admission abandoned because its context ended.
	OnCancel(endpoint string, err error)
}

// Observers fans events out to several observers in order.
func Observers(observers ...Observer) Observer {
	list := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) OnAdmit(rec RequestRecord) {
	for _, o := range m {
		o.OnAdmit(rec)
	}
}

func (m multiObserver) OnWait(endpoint string, d Decision) {
	for _, o := range m {
		o.OnWait(endpoint, d)
	}
}

func (m multiObserver) OnCancel(endpoint string, err error) {
	for _, o := range m {
		o.OnCancel(endpoint, err)
	}
}

// noopObserver discards events.
type noopObserver struct{}

func (noopObserver) OnAdmit(RequestRecord)   {}
func (noopObserver) OnWait(string, Decision) {}
func (noopObserver) OnCancel(string, error)  {}
