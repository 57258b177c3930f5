package zrtpfilter

import "time"

// activateTimer arms the engine timer, replacing a pending one.
func (f *Filter) activateTimer(d time.Duration) bool {
	f.timerMu.Lock()
	defer f.timerMu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
	}
	f.timerGen++
	gen := f.timerGen
	f.timer = f.clock.AfterFunc(d, func() { f.timerFired(gen) })
	return f.timer != nil
}

func (f *Filter) cancelTimer() {
	f.timerMu.Lock()
	defer f.timerMu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.timerGen++
}

// timerFired delivers a timeout unless the timer was cancelled or
// replaced in the meantime.
func (f *Filter) timerFired(gen uint64) {
	f.timerMu.Lock()
	if gen != f.timerGen || f.timer == nil {
		f.timerMu.Unlock()
		return
	}
	f.timer = nil
	f.timerMu.Unlock()

	if !f.started.Load() {
		return
	}
	f.engine.ProcessTimeout()
}
