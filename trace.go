package dsmt

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"
)

// Ensure Tracer implements interface.
var _ Backend = (*Tracer)(nil)

// Tracer is a Backend that logs every call before forwarding it, and keeps a
// digest of the call transcript. Two replays of the same formulas through
// fresh evaluators produce the same digest.
type Tracer struct {
	backend Backend
	log     *slog.Logger
	digest  *xxhash.Digest
	next    uint64
}

// tracedHandle numbers the terms created through a Tracer, so the transcript
// does not depend on backend pointers.
type tracedHandle struct {
	seq   uint64
	inner Handle
}

func (h *tracedHandle) String() string {
	return fmt.Sprintf("t%d", h.seq)
}

// Trace wraps b. A nil logger means slog.Default().
func Trace(b Backend, log *slog.Logger) *Tracer {
	if log == nil {
		log = slog.Default()
	}
	return &Tracer{backend: b, log: log, digest: xxhash.New()}
}

// Digest returns the hash of all calls made so far.
func (t *Tracer) Digest() uint64 {
	return t.digest.Sum64()
}

func (t *Tracer) unwrap(h Handle) (Handle, uint64) {
	if th, ok := h.(*tracedHandle); ok {
		return th.inner, th.seq
	}
	return h, ^uint64(0)
}

func (t *Tracer) record(op string, kind Kind, p Payload, seqs ...uint64) {
	var buf [8]byte
	t.digest.Write([]byte(op))
	binary.LittleEndian.PutUint64(buf[:], uint64(kind))
	t.digest.Write(buf[:])
	if p != nil {
		t.digest.Write([]byte(fmt.Sprintf("%#v", p)))
	}
	for _, s := range seqs {
		binary.LittleEndian.PutUint64(buf[:], s)
		t.digest.Write(buf[:])
	}
}

func (t *Tracer) Create(kind Kind, p Payload, args ...Handle) (Handle, error) {
	inner := make([]Handle, len(args))
	seqs := make([]uint64, len(args))
	for i, a := range args {
		inner[i], seqs[i] = t.unwrap(a)
	}
	t.record("create", kind, p, seqs...)

	h, err := t.backend.Create(kind, p, inner...)
	if err != nil {
		t.log.Debug("dsmt: create failed", "kind", kind.String(), "payload", p, "args", seqs, "err", err)
		return nil, err
	}
	th := &tracedHandle{seq: t.next, inner: h}
	t.next += 1
	t.log.Debug("dsmt: create", "kind", kind.String(), "payload", p, "args", seqs, "handle", th.seq)
	return th, nil
}

func (t *Tracer) Assertion(h Handle) error {
	inner, seq := t.unwrap(h)
	t.record("assert", TY_INVALID, nil, seq)
	t.log.Debug("dsmt: assertion", "handle", seq)
	return t.backend.Assertion(inner)
}

func (t *Tracer) Assumption(h Handle) error {
	inner, seq := t.unwrap(h)
	t.record("assume", TY_INVALID, nil, seq)
	t.log.Debug("dsmt: assumption", "handle", seq)
	return t.backend.Assumption(inner)
}

func (t *Tracer) Solve() (bool, error) {
	t.record("solve", TY_INVALID, nil)
	sat, err := t.backend.Solve()
	t.log.Debug("dsmt: solve", "sat", sat, "err", err)
	return sat, err
}

func (t *Tracer) ReadValue(h Handle) Result {
	inner, seq := t.unwrap(h)
	r := t.backend.ReadValue(inner)
	t.log.Debug("dsmt: read value", "handle", seq, "value", r.String())
	return r
}
