package log

import "sync"

// Entry is one message captured by a Recorder.
type Entry struct {
	Level  string
	Msg    string
	Fields []Field
}

// Recorder is a Logger that keeps every message in memory. It is intended
// for tests that assert on diagnostics.
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  []Field
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (r *Recorder) Debug(msg string, fields ...Field) { r.add("debug", msg, fields) }
func (r *Recorder) Info(msg string, fields ...Field)  { r.add("info", msg, fields) }
func (r *Recorder) Warn(msg string, fields ...Field)  { r.add("warn", msg, fields) }
func (r *Recorder) Error(msg string, fields ...Field) { r.add("error", msg, fields) }

// With returns a Recorder sharing the same entry list.
func (r *Recorder) With(fields ...Field) Logger {
	merged := append(append([]Field{}, r.fields...), fields...)
	return &Recorder{mu: r.mu, entries: r.entries, fields: merged}
}

func (r *Recorder) add(level, msg string, fields []Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := append(append([]Field{}, r.fields...), fields...)
	*r.entries = append(*r.entries, Entry{Level: level, Msg: msg, Fields: all})
}

// Entries returns a copy of the captured messages.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), *r.entries...)
}

// Count returns how many messages were logged at level.
func (r *Recorder) Count(level string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
