package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSinkWritesOneLinePerEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "failed_reassignments.log")
	sink, err := OpenFile(path)
	require.NoError(t, err)
	defer sink.Close()

	prev := int64(5)
	l := NewLog(sink)
	require.NoError(t, l.Record(context.Background(), Entry{Operation: OpReassign, CaseID: 10, NewFiscalID: 99, RequesterUserID: 1, PreviousFiscalID: &prev, Reason: "El fiscal no está activo"}))
	require.NoError(t, l.Record(context.Background(), Entry{Operation: OpAssign, CaseID: 11, NewFiscalID: 7, RequesterUserID: 1, Reason: "No se pudo asignar el fiscal"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var first map[string]any
	line := raw[:bytes.IndexByte(raw, '\n')]
	require.NoError(t, json.Unmarshal(line, &first))
	for _, k := range []string{"timestamp", "attemptId", "operation", "caseId", "newFiscalId", "requesterUserId", "previousFiscalId", "reason"} {
		require.Contains(t, first, k)
	}

	entries, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "El fiscal no está activo", entries[0].Reason)
	require.Nil(t, entries[1].PreviousFiscalID)
	require.Equal(t, OpAssign, entries[1].Operation)
}

func TestFileSinkAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	for i := 1; i <= 2; i++ {
		sink, err := OpenFile(path)
		require.NoError(t, err)
		require.NoError(t, NewLog(sink).Record(context.Background(), Entry{CaseID: int64(i), NewFiscalID: 2, RequesterUserID: 3, Reason: "r"}))
		require.NoError(t, sink.Close())
	}
	entries, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(1), entries[0].CaseID)
	require.Equal(t, int64(2), entries[1].CaseID)
}

func TestFileSinkConcurrentAppendsDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	sink, err := OpenFile(path)
	require.NoError(t, err)
	defer sink.Close()
	l := NewLog(sink)

	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- l.Record(context.Background(), Entry{
				Operation:       OpReassign,
				CaseID:          int64(i + 1),
				NewFiscalID:     99,
				RequesterUserID: 1,
				Reason:          fmt.Sprintf("motivo %03d con texto suficientemente largo para forzar escrituras grandes", i),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, n)
	seen := map[int64]bool{}
	for _, e := range entries {
		require.False(t, seen[e.CaseID])
		seen[e.CaseID] = true
		require.Equal(t, fmt.Sprintf("motivo %03d con texto suficientemente largo para forzar escrituras grandes", e.CaseID-1), e.Reason)
	}
}

func TestFileSinkClosed(t *testing.T) {
	sink, err := OpenFile(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	require.Error(t, sink.Append(context.Background(), Entry{CaseID: 1}))
}

func TestReadFileMissing(t *testing.T) {
	entries, err := ReadFile(filepath.Join(t.TempDir(), "none.log"))
	require.NoError(t, err)
	require.Empty(t, entries)
}
