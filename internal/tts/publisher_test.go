package tts

import "testing"

func TestPublisherKeepsLatest(t *testing.T) {
	p := NewPublisher(Snapshot{Chunk: -1})
	ch := p.Subscribe()

	if snap := <-ch; snap.Chunk != -1 {
		t.Fatalf("initial snapshot chunk = %d", snap.Chunk)
	}

	for i := range 5 {
		p.Publish(Snapshot{Chunk: i})
	}
	if snap := <-ch; snap.Chunk != 4 {
		t.Errorf("slow subscriber got chunk %d, want the latest (4)", snap.Chunk)
	}
	if got := p.State().Chunk; got != 4 {
		t.Errorf("State().Chunk = %d", got)
	}

	p.Close()
	if _, ok := <-ch; ok {
		t.Error("channel not closed by Close")
	}
	p.Publish(Snapshot{Chunk: 9}) // no panic after close
}
