// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import "sync"

// scheduler is the cooperative dispatcher described in §4.5/§5: bookkeeping
// (Target state transitions, map lookups) is serialized under mu so the
// engine state has a single logical owner, while the only real concurrency
// is recipe subprocess execution, bounded by sem to Jobs in flight at once.
type scheduler struct {
	mf      *Makefile
	sem     chan struct{}
	mu      sync.Mutex
	doneCh  map[string]chan struct{}
	err     error
	keepErr []error
}

func newScheduler(mf *Makefile) *scheduler {
	jobs := mf.Jobs
	if jobs < 1 {
		jobs = 1
	}
	return &scheduler{mf: mf, sem: make(chan struct{}, jobs), doneCh: map[string]chan struct{}{}}
}

// Build brings every name in goals up to date, or the makefile's default
// goal if goals is empty (§4.4). It returns the first fatal error, or, in
// keep-going mode, the first recorded error after every independent branch
// has been attempted.
func (mf *Makefile) Build(goals []string) error {
	if len(goals) == 0 {
		if mf.DefaultGoal == "" {
			return nil
		}
		goals = []string{mf.DefaultGoal}
	}
	if mf.Tracer != nil {
		mf.Tracer.OnMakeBegin(goals)
	}
	s := newScheduler(mf)
	dispatchInOrder(goals, func(name string, release func()) {
		s.ensure(name, release)
	})
	err := s.combinedErr()
	if mf.Tracer != nil {
		mf.Tracer.OnMakeFinish(err == nil)
	}
	return err
}

// dispatchInOrder runs fn(item, release) for every item in items, each in
// its own goroutine, but only lets item i+1 call fn once item i has called
// release. This is how sibling targets are "dispatched in the order they
// became ready" (§4.5) instead of however Go happens to schedule a set of
// goroutines all contending for the same semaphore: fn must call release
// once item's contention for a job slot (or the decision that it needs
// none) is settled, at which point later items are free to start
// contending themselves even while item keeps running. dispatchInOrder
// blocks until every item's fn call has returned, not merely released.
func dispatchInOrder(items []string, fn func(item string, release func())) {
	var wg sync.WaitGroup
	turn := make(chan struct{})
	close(turn)
	for _, item := range items {
		item := item
		myTurn := turn
		next := make(chan struct{})
		turn = next
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-myTurn
			var once sync.Once
			fn(item, func() { once.Do(func() { close(next) }) })
		}()
	}
	wg.Wait()
}

func (s *scheduler) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mf.KeepGoing {
		s.keepErr = append(s.keepErr, err)
		return
	}
	if s.err == nil {
		s.err = err
	}
}

func (s *scheduler) combinedErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if len(s.keepErr) > 0 {
		return s.keepErr[0]
	}
	return nil
}

func (s *scheduler) aborted() bool {
	if s.mf.KeepGoing {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}

// ensure builds name at most once per scheduler run, regardless of how many
// dependents request it concurrently (diamond dependencies), by having
// latecomers wait on the first caller's completion channel. release is
// called once name's own dispatch is settled, so a sibling later in the
// same rule's prerequisite list (or the same Build call's goal list) can
// start contending for a job slot itself (§4.5).
func (s *scheduler) ensure(name string, release func()) {
	if s.aborted() {
		release()
		return
	}
	s.mu.Lock()
	if ch, exists := s.doneCh[name]; exists {
		s.mu.Unlock()
		release()
		<-ch
		return
	}
	ch := make(chan struct{})
	s.doneCh[name] = ch
	t := s.mf.GetTarget(name)
	s.mu.Unlock()
	defer close(ch)
	s.build(t, release)
}

func (s *scheduler) build(t *Target, release func()) {
	if s.aborted() {
		release()
		return
	}
	all := make([]string, 0, len(t.Prereqs)+len(t.OrderOnly))
	all = append(all, t.Prereqs...)
	all = append(all, t.OrderOnly...)
	dispatchInOrder(all, func(name string, rel func()) {
		s.ensure(name, rel)
	})
	if s.aborted() {
		release()
		return
	}

	s.mu.Lock()
	if t.Rule == nil && !t.Exists {
		err := &NoRuleError{Target: t.Name}
		t.State = StateDoneFailure
		t.Err = err
		s.mu.Unlock()
		s.fail(err)
		release()
		return
	}
	needsBuild := t.Rule != nil && t.Stale(s.mf)
	t.State = StateReady
	s.mu.Unlock()

	if !needsBuild {
		s.mu.Lock()
		t.State = StateDoneSuccess
		s.mu.Unlock()
		release()
		return
	}

	s.sem <- struct{}{}
	release()
	s.mu.Lock()
	t.State = StateRunning
	s.mu.Unlock()
	if s.mf.Tracer != nil {
		s.mf.Tracer.OnTargetMakeBegin(t.Name)
	}
	err := runRecipe(s.mf, t, t.Rule)
	for _, sib := range t.Siblings {
		if err != nil {
			break
		}
		err = runRecipe(s.mf, t, sib)
	}
	<-s.sem

	s.mu.Lock()
	if err != nil {
		t.State = StateDoneFailure
		t.Err = err
	} else {
		t.State = StateDoneSuccess
		t.WasRemade = true
		s.mf.statTarget(t)
	}
	s.mu.Unlock()
	if s.mf.Tracer != nil {
		s.mf.Tracer.OnTargetFinish(t.Name, err == nil)
	}
	if err != nil {
		s.fail(err)
	}
}
