// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Tracer writes one NDJSON record per event to a shared log file, used for
// post-hoc build analysis (§4.6). Every write is guarded by an
// O_CREAT|O_EXCL lockfile so concurrent gomake processes (a parent and its
// recursive sub-makes) can append to the same log without interleaving
// partial records; acquisition retries until it succeeds, matching
// `Tracer._acquire_lock` in the pymake original (SUPPLEMENTED FEATURES #5).
type Tracer struct {
	path        string
	fingerprint bool
	mu          sync.Mutex
	clock       func() float64
}

// NewTracer returns a tracer appending to the trace log at path; the file
// is opened (or created) on each write. fingerprint turns on sha256 content
// hashing of each recipe command's text in the records OnCommandRun writes,
// for diagnostics only; it never feeds the mtime-based staleness decision
// (§3).
func NewTracer(path string, fingerprint bool) *Tracer {
	return &Tracer{path: path, fingerprint: fingerprint, clock: nowSeconds}
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// actionTag is the ACTION_TAG element of a traceRecord. §4.6/§6 enumerate
// the closed set of values a tracer implementation may emit.
type actionTag = string

const (
	tagMakefileBegin          actionTag = "MAKEFILE_BEGIN"
	tagMakefileFinish         actionTag = "MAKEFILE_FINISH"
	tagTargetBegin            actionTag = "TARGET_BEGIN"
	tagTargetFinish           actionTag = "TARGET_FINISH"
	tagTargetProcessRules     actionTag = "TARGET_PROCESS_RULES"
	tagRuleContextProcessCmds actionTag = "RULE_CONTEXT_PROCESS_COMMANDS"
	tagCommandRun             actionTag = "COMMAND_RUN"
	tagJobStart               actionTag = "JOB_START"
	tagJobFinish              actionTag = "JOB_FINISH"
	tagPymakeBegin            actionTag = "PYMAKE_BEGIN"
	tagPymakeFinish           actionTag = "PYMAKE_FINISH"
	tagMakefileCreate         actionTag = "MAKEFILE_CREATE"
	tagCommandCreate          actionTag = "COMMAND_CREATE"
)

// traceRecord is one NDJSON line: a 3-element `[ACTION_TAG, timestamp,
// payload]` array, not a JSON object (§4.6/§6). ACTION_TAG is always one of
// the constants declared above.
type traceRecord struct {
	Action string
	Time   float64
	Data   interface{}
}

func (r traceRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]interface{}{r.Action, r.Time, r.Data})
}

func (r *traceRecord) UnmarshalJSON(b []byte) error {
	var arr [3]json.RawMessage
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[0], &r.Action); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[1], &r.Time); err != nil {
		return err
	}
	return json.Unmarshal(arr[2], &r.Data)
}

func (t *Tracer) emit(action string, data interface{}) {
	rec := traceRecord{Action: action, Time: t.clock(), Data: data}
	if err := t.writeRecord(rec); err != nil {
		fmt.Fprintf(os.Stderr, "gomake: trace log write failed: %v\n", err)
	}
}

func (t *Tracer) writeRecord(rec traceRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.acquireLock(); err != nil {
		return err
	}
	defer t.releaseLock()
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

func (t *Tracer) lockPath() string { return t.path + ".lock" }

func (t *Tracer) acquireLock() error {
	for {
		f, err := os.OpenFile(t.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return nil
		}
		if os.IsExist(err) || os.IsPermission(err) {
			time.Sleep(2 * time.Millisecond)
			continue
		}
		return err
	}
}

func (t *Tracer) releaseLock() {
	_ = os.Remove(t.lockPath())
}

// OnMakeBegin/OnMakeFinish bracket one whole build, per §9's decision to
// emit both the legacy MAKEFILE_BEGIN/FINISH root and the newer
// PYMAKE_BEGIN/FINISH root in every run (SUPPLEMENTED FEATURES #6).
func (t *Tracer) OnMakeBegin(goals []string) {
	t.emit(tagMakefileBegin, map[string]interface{}{"goals": goals})
	t.emit(tagPymakeBegin, map[string]interface{}{"goals": goals})
}

func (t *Tracer) OnMakeFinish(success bool) {
	t.emit(tagMakefileFinish, map[string]interface{}{"success": success})
	t.emit(tagPymakeFinish, map[string]interface{}{"success": success})
}

// OnMakefileCreate fires every time a fresh Makefile object is built,
// including the restart protocol's brand-new object per attempt (§4.3).
func (t *Tracer) OnMakefileCreate(attempt int) {
	t.emit(tagMakefileCreate, map[string]interface{}{"attempt": attempt})
}

func (t *Tracer) OnTargetMakeBegin(target string) {
	t.emit(tagTargetBegin, map[string]interface{}{"target": target})
}

func (t *Tracer) OnTargetFinish(target string, success bool) {
	t.emit(tagTargetFinish, map[string]interface{}{"target": target, "success": success})
}

func (t *Tracer) OnTargetProcessRules(target string) {
	t.emit(tagTargetProcessRules, map[string]interface{}{"target": target})
}

func (t *Tracer) OnRuleContextProcessCommands(target string, n int) {
	t.emit(tagRuleContextProcessCmds, map[string]interface{}{"target": target, "commands": n})
}

// OnCommandRun fires immediately before a recipe command is executed,
// emitting both the legacy COMMAND_RUN tag and the newer COMMAND_CREATE
// tag traceparser.py uses for the identical event (SUPPLEMENTED FEATURES
// #6's begin/finish root duality applies here too).
func (t *Tracer) OnCommandRun(target, cmd string) {
	data := map[string]interface{}{"target": target, "cmd": cmd}
	if t.fingerprint {
		sum := sha256.Sum256([]byte(cmd))
		data["fingerprint"] = hex.EncodeToString(sum[:])
	}
	t.emit(tagCommandRun, data)
	t.emit(tagCommandCreate, data)
}

func (t *Tracer) OnJobStart(target, cmd string, jobID int) {
	t.emit(tagJobStart, map[string]interface{}{"target": target, "cmd": cmd, "job": jobID})
}

func (t *Tracer) OnJobFinish(target string, jobID int, success bool) {
	t.emit(tagJobFinish, map[string]interface{}{"target": target, "job": jobID, "success": success})
}
