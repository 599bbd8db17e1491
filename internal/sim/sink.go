package sim

// Recorder keeps every record in memory.
type Recorder struct {
	Records []Record
}

func NewRecorder(capacity int) *Recorder {
	return &Recorder{Records: make([]Record, 0, capacity)}
}

func (r *Recorder) Write(rec Record) error {
	r.Records = append(r.Records, rec)
	return nil
}

// Discard drops every record.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(Record) error { return nil }

type tee []Sink

// Tee writes each record to every sink in order and stops at the first
// error.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) Write(rec Record) error {
	for _, s := range t {
		if err := s.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
