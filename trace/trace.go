// Package trace records message sends made through a bridge as a CBOR
// transcript: one header followed by one record per invocation.
package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/objcbridge/bridge"
	"github.com/chazu/objcbridge/typeenc"
)

var log = commonlog.GetLogger("objcbridge.trace")

// Version is the transcript format version.
const Version = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Header opens a transcript.
type Header struct {
	Version int       `cbor:"1,keyasint"`
	Session uuid.UUID `cbor:"2,keyasint"`
	Started int64     `cbor:"3,keyasint"` // unix nanoseconds
	Backend string    `cbor:"4,keyasint,omitempty"`
}

// Record is one message send.
type Record struct {
	Seq       uint64   `cbor:"1,keyasint"`
	Class     string   `cbor:"2,keyasint"`
	ClassSide bool     `cbor:"3,keyasint,omitempty"`
	Selector  string   `cbor:"4,keyasint"`
	Types     []string `cbor:"5,keyasint"` // return encoding first
	Args      [][]byte `cbor:"6,keyasint,omitempty"`
	Return    []byte   `cbor:"7,keyasint,omitempty"`
	Error     string   `cbor:"8,keyasint,omitempty"`
	Start     int64    `cbor:"9,keyasint"`
	Duration  int64    `cbor:"10,keyasint"`
}

// MarshalRecord serializes a Record to CBOR bytes.
func MarshalRecord(r *Record) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalRecord deserializes a Record from CBOR bytes.
func UnmarshalRecord(data []byte) (*Record, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("trace: unmarshal record: %w", err)
	}
	return &r, nil
}

// Signature returns the method as "-[Class selector]" or "+[Class selector]".
func (r *Record) Signature() string {
	side := "-"
	if r.ClassSide {
		side = "+"
	}
	return fmt.Sprintf("%s[%s %s]", side, r.Class, r.Selector)
}

// Values renders the argument slots and the return slot using their
// encodings. Pointer-shaped slots print as addresses.
func (r *Record) Values() (args []string, ret string) {
	for i, raw := range r.Args {
		enc := ""
		if i+1 < len(r.Types) {
			enc = r.Types[i+1]
		}
		args = append(args, formatSlot(raw, enc))
	}
	if len(r.Types) > 0 {
		ret = formatSlot(r.Return, r.Types[0])
	}
	return args, ret
}

func formatSlot(raw []byte, enc string) string {
	t, err := typeenc.Parse(enc)
	if err != nil || len(raw) < t.Size() {
		return fmt.Sprintf("<%s %x>", enc, raw)
	}
	switch {
	case t.Kind == typeenc.Void:
		return "void"
	case t.Kind == typeenc.Bool:
		if raw[0] != 0 {
			return "YES"
		}
		return "NO"
	case typeenc.IsPointer(t.Kind):
		return fmt.Sprintf("%#x", typeenc.Pointer(raw))
	}
	f, err := typeenc.Number(raw, t.Kind)
	if err != nil {
		return fmt.Sprintf("<%s %x>", enc, raw)
	}
	return fmt.Sprint(f)
}

func (r *Record) String() string {
	args, ret := r.Values()
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s(%s) -> %s", r.Seq, r.Signature(), strings.Join(args, ", "), ret)
	fmt.Fprintf(&b, " [%s]", time.Duration(r.Duration))
	if r.Error != "" {
		fmt.Fprintf(&b, " error: %s", r.Error)
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Writer
// ---------------------------------------------------------------------------

// Writer appends records to a transcript. It implements bridge.Observer.
type Writer struct {
	mu      sync.Mutex
	enc     *cbor.Encoder
	closer  io.Closer
	header  Header
	seq     uint64
	err     error
	written int
}

// NewWriter writes a header to w and returns a writer for its records.
func NewWriter(w io.Writer, backend string) (*Writer, error) {
	tw := &Writer{
		enc: cborEncMode.NewEncoder(w),
		header: Header{
			Version: Version,
			Session: uuid.New(),
			Started: time.Now().UnixNano(),
			Backend: backend,
		},
	}
	if err := tw.enc.Encode(&tw.header); err != nil {
		return nil, fmt.Errorf("trace: write header: %w", err)
	}
	return tw, nil
}

// Create starts a transcript file at path, truncating any existing one.
func Create(path, backend string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	tw, err := NewWriter(f, backend)
	if err != nil {
		f.Close()
		return nil, err
	}
	tw.closer = f
	log.Infof("tracing session %s to %s", tw.header.Session, path)
	return tw, nil
}

// Session returns the transcript's session id.
func (w *Writer) Session() uuid.UUID { return w.header.Session }

// ObserveCall appends rec. Observers cannot fail a call, so the first
// write error is kept and reported by Err and Close.
func (w *Writer) ObserveCall(rec *bridge.CallRecord) {
	if rec == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	w.seq++
	r := Record{
		Seq:       w.seq,
		Class:     rec.Class,
		ClassSide: rec.ClassSide,
		Selector:  rec.Selector,
		Types:     rec.Types,
		Args:      rec.Args,
		Return:    rec.Return,
		Start:     rec.Start.UnixNano(),
		Duration:  int64(rec.Duration),
	}
	if rec.Err != nil {
		r.Error = rec.Err.Error()
	}
	if err := w.enc.Encode(&r); err != nil {
		w.err = fmt.Errorf("trace: write record %d: %w", r.Seq, err)
		log.Errorf("%s", w.err)
		return
	}
	w.written++
}

// Written returns the number of records written.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Err returns the first write error.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close closes the underlying file, if the writer opened one.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var err error
	if w.closer != nil {
		err = w.closer.Close()
		w.closer = nil
	}
	return errors.Join(w.err, err)
}

// ---------------------------------------------------------------------------
// Reader
// ---------------------------------------------------------------------------

// Reader reads a transcript back.
type Reader struct {
	dec    *cbor.Decoder
	Header Header
}

// NewReader reads and checks the header.
func NewReader(r io.Reader) (*Reader, error) {
	tr := &Reader{dec: cbor.NewDecoder(r)}
	if err := tr.dec.Decode(&tr.Header); err != nil {
		return nil, fmt.Errorf("trace: read header: %w", err)
	}
	if tr.Header.Version != Version {
		return nil, fmt.Errorf("trace: unsupported version %d", tr.Header.Version)
	}
	return tr, nil
}

// Next returns the next record, or io.EOF at the end of the transcript.
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("trace: read record: %w", err)
	}
	return &rec, nil
}

// ReadFile loads a whole transcript.
func ReadFile(path string) (Header, []*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("trace: %w", err)
	}
	defer f.Close()
	r, err := NewReader(f)
	if err != nil {
		return Header{}, nil, err
	}
	var recs []*Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return r.Header, recs, nil
		}
		if err != nil {
			return r.Header, recs, err
		}
		recs = append(recs, rec)
	}
}
