package stats

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeCounted struct {
	reqs, written, read int64
}

func (f fakeCounted) ReqsTotal() int64    { return f.reqs }
func (f fakeCounted) WrittenTotal() int64 { return f.written }
func (f fakeCounted) ReadTotal() int64    { return f.read }

func TestFormatBytes_IECSuffixes(t *testing.T) {
	assert.Equal(t, "0.00 B", FormatBytes(0))
	assert.Equal(t, "512.00 B", FormatBytes(512))
	assert.Equal(t, "1.00 kiB", FormatBytes(1024))
	assert.Equal(t, "1.50 MiB", FormatBytes(1024*1024+512*1024))
}

func TestAggregate_SumsAcrossConnections(t *testing.T) {
	conns := []Counted{
		fakeCounted{reqs: 10, written: 1000, read: 2000},
		fakeCounted{reqs: 5, written: 500, read: 900},
	}
	errs := &Errors{}
	errs.Conn.Store(2)
	errs.Status.Store(1)

	r := Aggregate(conns, 2*time.Second, errs)
	assert.EqualValues(t, 15, r.Hits)
	assert.EqualValues(t, 1500, r.Written)
	assert.EqualValues(t, 2900, r.Read)
	assert.EqualValues(t, 2, r.Errors.Conn)
	assert.EqualValues(t, 1, r.Errors.Status)
	assert.EqualValues(t, 0, r.Errors.Parser)
}

func TestReport_PrintOmitsErrorsLineWhenZero(t *testing.T) {
	r := Report{Duration: time.Second, Written: 100, Read: 200, Hits: 10}
	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "Hits: 10, 10.00/s")
	assert.NotContains(t, out, "Errors connection")
}

func TestReport_PrintIncludesErrorsLineWhenNonzero(t *testing.T) {
	r := Report{Duration: time.Second, Hits: 1}
	r.Errors.Conn = 3
	var buf bytes.Buffer
	r.Print(&buf)
	assert.Contains(t, buf.String(), "Errors connection: 3, status: 0, parser: 0")
}
