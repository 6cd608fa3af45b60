package av

import (
	"sync"

	"github.com/opd-ai/rtcevent/event"
	"github.com/sirupsen/logrus"
)

// cdnTable keeps the latest state of every relay endpoint in first-seen order.
type cdnTable struct {
	order []string
	infos map[string]event.RelayCDNInfo
}

func newCDNTable() cdnTable {
	return cdnTable{infos: make(map[string]event.RelayCDNInfo)}
}

// update stores info and reports whether the endpoint's state or code changed.
func (t *cdnTable) update(info event.RelayCDNInfo) bool {
	prev, ok := t.infos[info.URL]
	if ok && prev.State == info.State && prev.UpdateCode == info.UpdateCode {
		return false
	}
	if !ok {
		t.order = append(t.order, info.URL)
	}
	t.infos[info.URL] = info
	return true
}

// list returns a copy of every endpoint in first-seen order.
func (t *cdnTable) list() []event.RelayCDNInfo {
	out := make([]event.RelayCDNInfo, 0, len(t.order))
	for _, url := range t.order {
		out = append(out, t.infos[url])
	}
	return out
}

// Mixer tracks relay endpoints of stream mixing tasks. Mixing itself runs in
// the transport collaborator; only its forwarding health is reported here.
type Mixer struct {
	mu    sync.Mutex
	sink  event.Sink
	tasks map[string]*cdnTable
}

// NewMixer creates a mixer tracker emitting to sink.
func NewMixer(sink event.Sink) *Mixer {
	return &Mixer{sink: sink, tasks: make(map[string]*cdnTable)}
}

// RelayCDNStateChanged records one endpoint report of taskID and emits the
// task's full endpoint list when anything changed.
func (m *Mixer) RelayCDNStateChanged(taskID string, info event.RelayCDNInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.tasks[taskID]
	if !ok {
		t := newCDNTable()
		table = &t
		m.tasks[taskID] = table
	}
	if !table.update(info) {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "Mixer.RelayCDNStateChanged",
		"task_id":  taskID,
		"url":      info.URL,
		"state":    info.State.String(),
		"code":     info.UpdateCode,
	}).Debug("Mixer relay endpoint changed")

	m.sink.Publish(event.MixerRelayCDNStateUpdate{TaskID: taskID, Infos: table.list()})
}

// EndTask forgets the endpoints of taskID.
func (m *Mixer) EndTask(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
}

// Tasks returns the IDs of every tracked mixing task.
func (m *Mixer) Tasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.tasks))
	for id := range m.tasks {
		out = append(out, id)
	}
	return out
}
