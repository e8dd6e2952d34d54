// ABOUTME: Test doubles shared by the fleet suite: a scriptable game client
// ABOUTME: adapter, a supervisor event recorder, and a recording notifier.

package fleet

import (
	"context"
	"sync"
	"time"

	"github.com/wardenlabs/minefleet/internal/gameclient"
)

// fakeClient is a scriptable adapter. Tests drive lifecycle by pushing
// events onto the channel; Connect outcomes come from connectErr.
type fakeClient struct {
	events chan gameclient.Event

	mu              sync.Mutex
	connectErr      error
	connectCalls    int
	disconnectCalls int
	forceCalls      int
	sendOK          bool
	sent            []string
	cmds            []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		events: make(chan gameclient.Event, 32),
		sendOK: true,
	}
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	return f.connectErr
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
}

func (f *fakeClient) ForceDisconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceCalls++
}

func (f *fakeClient) IsAlive() bool { return true }

func (f *fakeClient) SendMessage(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendOK {
		f.sent = append(f.sent, text)
	}
	return f.sendOK
}

func (f *fakeClient) ExecuteCommand(cmd string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendOK {
		f.cmds = append(f.cmds, cmd)
	}
	return f.sendOK
}

func (f *fakeClient) Info() gameclient.Info {
	return gameclient.Info{Username: "fake", Edition: "java"}
}

func (f *fakeClient) Events() <-chan gameclient.Event { return f.events }

func (f *fakeClient) setConnectErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

func (f *fakeClient) calls() (connects, disconnects, forces int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls, f.disconnectCalls, f.forceCalls
}

func (f *fakeClient) emitConnected() {
	f.events <- gameclient.Event{Type: gameclient.EventConnected, Meta: gameclient.SessionMeta{
		Server: "mc.example.com:25565", Username: "fake", Version: "1.21.8", Edition: "java",
	}}
}

func (f *fakeClient) emitDisconnected(reason string) {
	f.events <- gameclient.Event{Type: gameclient.EventDisconnected, Reason: reason}
}

func (f *fakeClient) emitKicked(reason string, serverDown bool) {
	f.events <- gameclient.Event{Type: gameclient.EventKicked, Reason: reason, ServerDown: serverDown}
}

// eventRecorder collects supervisor events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *eventRecorder) count(kind EventKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) waitFor(kind EventKind, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.count(kind) > 0 {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

// recordingNotifier captures every signal the fleet emits.
type recordingNotifier struct {
	mu           sync.Mutex
	connected    []string
	disconnected []string
	errs         []string
	warnings     []int
	finals       []string
	chats        []string
}

func newRecordingNotifier() *recordingNotifier { return &recordingNotifier{} }

func (n *recordingNotifier) BotConnected(botID string, meta gameclient.SessionMeta) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connected = append(n.connected, botID)
}

func (n *recordingNotifier) BotDisconnected(botID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disconnected = append(n.disconnected, botID)
}

func (n *recordingNotifier) BotError(botID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, botID+": "+reason)
}

func (n *recordingNotifier) DisconnectionWarning(botID string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, count)
}

func (n *recordingNotifier) DisconnectionFinal(botID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finals = append(n.finals, botID)
}

func (n *recordingNotifier) BotChat(botID, speaker, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chats = append(n.chats, speaker+": "+text)
}

func (n *recordingNotifier) warningCounts() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]int, len(n.warnings))
	copy(out, n.warnings)
	return out
}

func (n *recordingNotifier) finalCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.finals)
}

func (n *recordingNotifier) disconnectedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.disconnected)
}

func (n *recordingNotifier) connectedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.connected)
}

func (n *recordingNotifier) errCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}
