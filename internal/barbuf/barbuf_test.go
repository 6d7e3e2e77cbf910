package barbuf

import (
	"testing"
	"time"

	"futures-botv1/internal/model"
)

func barAt(sec int64, close int64) model.Bar {
	return model.Bar{
		TS:     time.Unix(sec, 0).UTC(),
		Open:   close,
		High:   close + 100,
		Low:    close - 100,
		Close:  close,
		Volume: 10,
	}
}

func TestBuffer_AppendOrdered(t *testing.T) {
	b := New(5, 20)

	for i := int64(0); i < 10; i++ {
		if got := b.Append(barAt(100+i*60, 10000+i)); got != Inserted {
			t.Fatalf("bar %d: expected Inserted, got %v", i, got)
		}
	}
	if b.Len() != 10 {
		t.Fatalf("expected len=10, got %d", b.Len())
	}
}

func TestBuffer_ReplaceSameTimestamp(t *testing.T) {
	b := New(5, 20)
	b.Append(barAt(100, 10000))

	if got := b.Append(barAt(100, 10500)); got != Replaced {
		t.Fatalf("expected Replaced, got %v", got)
	}
	if b.Len() != 1 {
		t.Fatalf("expected len=1 after replace, got %d", b.Len())
	}
	if b.Snapshot()[0].Close != 10500 {
		t.Fatalf("expected replaced close=10500, got %d", b.Snapshot()[0].Close)
	}
}

func TestBuffer_RejectStale(t *testing.T) {
	b := New(5, 20)
	b.Append(barAt(100, 10000))
	b.Append(barAt(160, 10100))

	if got := b.Append(barAt(99, 9000)); got != RejectedStale {
		t.Fatalf("expected RejectedStale, got %v", got)
	}
	snap := b.Snapshot()
	if len(snap) != 2 || snap[0].Close != 10000 || snap[1].Close != 10100 {
		t.Fatalf("buffer changed by stale append: %+v", snap)
	}
}

func TestBuffer_TrimsToRetentionCap(t *testing.T) {
	b := New(5, 20) // cap = 60

	for i := int64(0); i < 100; i++ {
		b.Append(barAt(i*60, 10000+i))
	}
	if b.Len() != 60 {
		t.Fatalf("expected len=60 after trim, got %d", b.Len())
	}
	snap := b.Snapshot()
	if snap[0].Close != 10040 {
		t.Fatalf("expected oldest surviving close=10040, got %d", snap[0].Close)
	}
	if snap[len(snap)-1].Close != 10099 {
		t.Fatalf("expected newest close=10099, got %d", snap[len(snap)-1].Close)
	}
}

func TestBuffer_CapUsesLongerWindow(t *testing.T) {
	b := New(30, 20)
	if b.Cap() != 90 {
		t.Fatalf("expected cap=90, got %d", b.Cap())
	}
}

func TestBuffer_TimestampsStrictlyIncreasing(t *testing.T) {
	b := New(5, 20)
	b.Append(barAt(100, 1))
	b.Append(barAt(160, 2))
	b.Append(barAt(160, 3)) // replace
	b.Append(barAt(220, 4))
	b.Append(barAt(130, 5)) // stale

	snap := b.Snapshot()
	for i := 1; i < len(snap); i++ {
		if !snap[i].TS.After(snap[i-1].TS) {
			t.Fatalf("timestamps not strictly increasing at %d: %v vs %v",
				i, snap[i-1].TS, snap[i].TS)
		}
	}
}
