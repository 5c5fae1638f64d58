package trace

import (
	"encoding/binary"
	"io"
	"sync"
)

// recordWireSize is the on-disk size of one trace record: event_type,
// src_id, dst_id (int32 each), pointer, logical_time, microstep (uint32),
// physical_time, trigger, extra_delay.
const recordWireSize = 4*3 + 8 + 8 + 4 + 8 + 8 + 8 // = 56

// Writer is a Sink that marshals Records to the documented binary layout
// and writes them to an io.Writer, grounded on the teacher's explicit
// field-by-field binary.LittleEndian marshaling in internal/uapi/marshal.go.
// The header (start time, then a size-prefixed pointer->description table)
// is written once, on first use, from the descs map given to NewWriter;
// entries added to that map before the first record are included.
type Writer struct {
	w         io.Writer
	startTime int64
	descs     map[uintptr]string

	mu            sync.Mutex
	headerWritten bool
	err           error
}

// NewWriter constructs a binary trace Writer. startTimeNs is recorded
// verbatim in the header (a Unix-epoch nanosecond timestamp, chosen by the
// caller); descs is the pointer->description table flushed once at the
// start of the stream.
func NewWriter(w io.Writer, startTimeNs int64, descs map[uintptr]string) *Writer {
	return &Writer{w: w, startTime: startTimeNs, descs: descs}
}

// Write implements Sink: it lazily emits the header on the first call, then
// appends one length-prefixed frame per Record. Errors are sticky; once one
// write fails, every subsequent Write is a no-op.
func (bw *Writer) Write(r Record) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if bw.err != nil {
		return
	}
	if !bw.headerWritten {
		bw.err = bw.writeHeaderLocked()
		bw.headerWritten = true
		if bw.err != nil {
			return
		}
	}
	bw.err = bw.writeFrameLocked(r)
}

// Err returns the first error encountered while writing, or nil.
func (bw *Writer) Err() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.err
}

func (bw *Writer) writeHeaderLocked() error {
	header := make([]byte, 8+4)
	binary.LittleEndian.PutUint64(header[0:8], uint64(bw.startTime))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(bw.descs)))
	if _, err := bw.w.Write(header); err != nil {
		return err
	}

	for ptr, desc := range bw.descs {
		entry := make([]byte, 8+4+len(desc))
		binary.LittleEndian.PutUint64(entry[0:8], uint64(ptr))
		binary.LittleEndian.PutUint32(entry[8:12], uint32(len(desc)))
		copy(entry[12:], desc)
		if _, err := bw.w.Write(entry); err != nil {
			return err
		}
	}
	return nil
}

func (bw *Writer) writeFrameLocked(r Record) error {
	buf := make([]byte, 4+recordWireSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(1)) // record count

	body := buf[4:]
	binary.LittleEndian.PutUint32(body[0:4], uint32(r.EventType))
	binary.LittleEndian.PutUint64(body[4:12], uint64(r.Pointer))
	binary.LittleEndian.PutUint32(body[12:16], uint32(r.SrcID))
	binary.LittleEndian.PutUint32(body[16:20], uint32(r.DstID))
	binary.LittleEndian.PutUint64(body[20:28], uint64(r.LogicalTime))
	binary.LittleEndian.PutUint32(body[28:32], r.Microstep)
	binary.LittleEndian.PutUint64(body[32:40], uint64(r.PhysicalTime))
	binary.LittleEndian.PutUint64(body[40:48], uint64(r.Trigger))
	binary.LittleEndian.PutUint64(body[48:56], uint64(r.ExtraDelay))

	_, err := bw.w.Write(buf)
	return err
}
