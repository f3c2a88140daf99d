package elements

import "github.com/streampipe/recordpipe/internal/mge"

// Queue decouples producer and consumer rates with a bounded mailbox and
// a "drop oldest downstream" leak policy (enforced by the sink Pad
// itself), matching the ingest and branch queue properties: unbounded
// by bytes/time, capped at a buffer count.
type Queue struct {
	mge.BaseElement
	in   *mge.Pad
	out  *mge.Pad
	stop chan struct{}
	done chan struct{}
}

// NewQueue creates a queue element with the given buffer-count cap.
func NewQueue(name string, maxBuffers int) *Queue {
	q := &Queue{BaseElement: mge.NewBaseElement(name)}
	q.in = mge.NewSinkPad("sink", q, maxBuffers)
	q.out = mge.NewSrcPad("src", q)
	q.AddPad(q.in)
	q.AddPad(q.out)
	return q
}

func (q *Queue) In() *mge.Pad  { return q.in }
func (q *Queue) Out() *mge.Pad { return q.out }

func (q *Queue) SetState(s mge.State) error {
	switch s {
	case mge.StatePlaying:
		if q.stop != nil {
			return nil
		}
		q.stop = make(chan struct{})
		q.done = make(chan struct{})
		go q.run()
	case mge.StateNull:
		if q.stop != nil {
			close(q.stop)
			<-q.done
			q.stop, q.done = nil, nil
		}
	}
	return nil
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case s := <-q.in.Recv():
			q.out.Push(s)
			if s.EOS {
				return
			}
		case <-q.stop:
			return
		}
	}
}
