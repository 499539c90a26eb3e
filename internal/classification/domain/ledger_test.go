package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerBoundedFIFO(t *testing.T) {
	var l Ledger
	for i := 0; i < 25; i++ {
		l.RecordMessage(fmt.Sprintf("m%d", i))
		l.RecordThread(fmt.Sprintf("t%d", i))
		assert.LessOrEqual(t, len(l.MessageIDs), LedgerCap)
		assert.LessOrEqual(t, len(l.ThreadIDs), LedgerCap)
	}

	require.Len(t, l.MessageIDs, LedgerCap)
	assert.Equal(t, "m15", l.MessageIDs[0])
	assert.Equal(t, "m24", l.MessageIDs[LedgerCap-1])
	assert.False(t, l.IsMessageProcessed("m14"))
	assert.True(t, l.IsMessageProcessed("m15"))
	assert.False(t, l.IsThreadProcessed("t0"))
	assert.True(t, l.IsThreadProcessed("t24"))
}

func TestLedgerIgnoresDuplicatesAndEmptyThread(t *testing.T) {
	var l Ledger
	l.RecordMessage("a")
	l.RecordMessage("a")
	l.RecordThread("")
	l.RecordThread("x")
	l.RecordThread("x")

	assert.Equal(t, []string{"a"}, l.MessageIDs)
	assert.Equal(t, []string{"x"}, l.ThreadIDs)
	assert.False(t, l.IsThreadProcessed(""))
}

func TestLedgerReset(t *testing.T) {
	l := Ledger{MessageIDs: []string{"a"}, ThreadIDs: []string{"b"}}
	l.Reset()
	assert.False(t, l.IsMessageProcessed("a"))
	assert.False(t, l.IsThreadProcessed("b"))
	assert.NotNil(t, l.MessageIDs)
}

func TestLedgerCloneIsIndependent(t *testing.T) {
	l := Ledger{MessageIDs: []string{"a"}}
	cp := l.Clone()
	cp.RecordMessage("b")
	assert.Equal(t, []string{"a"}, l.MessageIDs)
}

func TestLedgerColumnRoundTrip(t *testing.T) {
	var empty Ledger
	v, err := empty.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"processed_message_ids":[],"processed_thread_ids":[]}`, v.(string))

	l := Ledger{MessageIDs: []string{"m1"}, ThreadIDs: []string{"t1"}}
	v, err = l.Value()
	require.NoError(t, err)

	var back Ledger
	require.NoError(t, back.Scan([]byte(v.(string))))
	assert.Equal(t, l, back)

	require.NoError(t, back.Scan(nil))
	assert.Empty(t, back.MessageIDs)
}
