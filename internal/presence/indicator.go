package presence

import (
	"sort"
	"sync"
	"time"
)

const defaultIndicatorTTL = 1500 * time.Millisecond

// Indicator tracks which remote participants are typing. Each typing signal
// (re)arms that participant's expiry timer; a repeat signal resets the timer
// rather than stacking a second expiration.
type Indicator struct {
	ttl      time.Duration
	onChange func(active []string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewIndicator builds an indicator. onChange, if non-nil, is invoked with
// the current typer set whenever it changes.
func NewIndicator(ttl time.Duration, onChange func(active []string)) *Indicator {
	if ttl <= 0 {
		ttl = defaultIndicatorTTL
	}
	return &Indicator{
		ttl:      ttl,
		onChange: onChange,
		timers:   make(map[string]*time.Timer),
	}
}

// Mark records a typing signal from who.
func (i *Indicator) Mark(who string) {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return
	}
	if timer, ok := i.timers[who]; ok {
		timer.Reset(i.ttl)
		i.mu.Unlock()
		return
	}
	i.timers[who] = time.AfterFunc(i.ttl, func() {
		i.expire(who)
	})
	active := i.activeLocked()
	i.mu.Unlock()
	i.notify(active)
}

func (i *Indicator) expire(who string) {
	i.mu.Lock()
	if _, ok := i.timers[who]; !ok {
		i.mu.Unlock()
		return
	}
	delete(i.timers, who)
	active := i.activeLocked()
	i.mu.Unlock()
	i.notify(active)
}

// Active returns the participants currently shown as typing.
func (i *Indicator) Active() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.activeLocked()
}

func (i *Indicator) activeLocked() []string {
	active := make([]string, 0, len(i.timers))
	for who := range i.timers {
		active = append(active, who)
	}
	sort.Strings(active)
	return active
}

func (i *Indicator) notify(active []string) {
	if i.onChange != nil {
		i.onChange(active)
	}
}

// Stop cancels every pending expiry timer.
func (i *Indicator) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopped = true
	for who, timer := range i.timers {
		timer.Stop()
		delete(i.timers, who)
	}
}
