package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rulescribe/rulescribe/internal/port/transport"
)

type fakeTransport struct {
	mu      sync.Mutex
	sends   []string
	edits   []string
	deletes []transport.MessageRef
	nextRef int
}

func (f *fakeTransport) Send(_ context.Context, _, text string, _ []transport.Option) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, text)
	f.nextRef++
	return transport.MessageRef(fmt.Sprintf("msg-%d", f.nextRef)), nil
}

func (f *fakeTransport) Edit(_ context.Context, _ transport.MessageRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) Delete(_ context.Context, ref transport.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, ref)
	return nil
}

func (f *fakeTransport) SendTyping(_ context.Context, _ string) error { return nil }

func TestFirstUpdateCreatesMessage(t *testing.T) {
	tr := &fakeTransport{}
	r := NewReporter(tr, time.Second)
	h := r.Begin("t1", "u1")

	if err := r.Update(context.Background(), h, "searching..."); err != nil {
		t.Fatal(err)
	}

	if len(tr.sends) != 1 || tr.sends[0] != "searching..." {
		t.Errorf("expected one send, got %v", tr.sends)
	}
	if len(tr.edits) != 0 {
		t.Errorf("expected no edits, got %v", tr.edits)
	}
}

func TestUpdatesAreDebounced(t *testing.T) {
	tr := &fakeTransport{}
	r := NewReporter(tr, time.Second)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	h := r.Begin("t1", "u1")
	ctx := context.Background()

	_ = r.Update(ctx, h, "step 1")
	_ = r.Update(ctx, h, "step 2") // within debounce, dropped

	if len(tr.sends)+len(tr.edits) != 1 {
		t.Fatalf("expected 1 delivered update, got %d sends %d edits", len(tr.sends), len(tr.edits))
	}

	now = now.Add(2 * time.Second)
	_ = r.Update(ctx, h, "step 3")

	if len(tr.edits) != 1 || tr.edits[0] != "step 3" {
		t.Errorf("expected edit with step 3, got %v", tr.edits)
	}
}

func TestUnchangedTextIsNotResent(t *testing.T) {
	tr := &fakeTransport{}
	r := NewReporter(tr, time.Millisecond)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	h := r.Begin("t1", "u1")
	ctx := context.Background()

	_ = r.Update(ctx, h, "same")
	now = now.Add(time.Second)
	_ = r.Update(ctx, h, "same")

	if len(tr.sends)+len(tr.edits) != 1 {
		t.Errorf("identical text should not be redelivered: %d sends %d edits", len(tr.sends), len(tr.edits))
	}
}

func TestFinishDeletesOnceAndIsIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	r := NewReporter(tr, time.Millisecond)
	h := r.Begin("t1", "u1")
	ctx := context.Background()

	_ = r.Update(ctx, h, "working")
	r.Finish(ctx, h)
	r.Finish(ctx, h)

	if len(tr.deletes) != 1 {
		t.Errorf("expected exactly one delete, got %d", len(tr.deletes))
	}
	if !h.Retired() {
		t.Error("handle should be retired")
	}
}

func TestFinishWithoutMessageIsNoOp(t *testing.T) {
	tr := &fakeTransport{}
	r := NewReporter(tr, time.Second)
	h := r.Begin("t1", "u1")

	r.Finish(context.Background(), h)

	if len(tr.deletes) != 0 {
		t.Errorf("no message was created, nothing to delete: %v", tr.deletes)
	}
	if !h.Retired() {
		t.Error("handle should be retired")
	}
}

func TestUpdateAfterFinishFails(t *testing.T) {
	tr := &fakeTransport{}
	r := NewReporter(tr, time.Second)
	h := r.Begin("t1", "u1")
	ctx := context.Background()

	r.Finish(ctx, h)

	err := r.Update(ctx, h, "late")
	if !errors.Is(err, ErrRetired) {
		t.Fatalf("expected ErrRetired, got %v", err)
	}
	if len(tr.sends) != 0 {
		t.Error("retired handle must not reach the transport")
	}
}
