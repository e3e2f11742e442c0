package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mivasi/ankigen"
)

func TestParseSetPairs(t *testing.T) {
	fields, err := parseSetPairs([]string{"Back=dog", "Front=el perro"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Back": "dog", "Front": "el perro"}, fields)
}

func TestParseSetPairsKeepsEqualsInValue(t *testing.T) {
	fields, err := parseSetPairs([]string{"Back=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "a=b", fields["Back"])
}

func TestParseSetPairsRejectsMalformed(t *testing.T) {
	_, err := parseSetPairs([]string{"Back"})
	require.Error(t, err)

	_, err = parseSetPairs([]string{"=dog"})
	require.Error(t, err)

	_, err = parseSetPairs([]string{"Back=a", "Back=b"})
	require.Error(t, err)
}

type recordedAction struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// updateTestApp wires an app to a scripted AnkiConnect endpoint.
func updateTestApp(t *testing.T, results map[string]any) (*app, *[]recordedAction) {
	t.Helper()
	var seen []recordedAction

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedAction
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req)

		result, ok := results[req.Action]
		if !ok {
			require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"result": nil, "error": "unsupported action"}))
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"result": result, "error": nil}))
	}))
	t.Cleanup(srv.Close)

	return &app{
		cfg: &ankigen.Config{AnkiConnectURL: srv.URL},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		out: &bytes.Buffer{},
	}, &seen
}

func noteInfoResult(id int64, fields map[string]string) []any {
	fs := make(map[string]any, len(fields))
	order := 0
	for name, value := range fields {
		fs[name] = map[string]any{"value": value, "order": order}
		order++
	}
	return []any{map[string]any{"noteId": id, "modelName": "Basic", "fields": fs}}
}

func TestRunUpdate(t *testing.T) {
	a, seen := updateTestApp(t, map[string]any{
		"findNotes":        []int64{1501},
		"notesInfo":        noteInfoResult(1501, map[string]string{"Front": "perro", "Back": "dgo"}),
		"updateNoteFields": nil,
	})

	err := a.runUpdate(context.Background(), "Spanish", "Front:perro", map[string]string{"Back": "dog"})
	require.NoError(t, err)

	require.Len(t, *seen, 3)
	assert.Equal(t, "findNotes", (*seen)[0].Action)
	assert.JSONEq(t, `{"query":"\"deck:Spanish\" Front:perro"}`, string((*seen)[0].Params))
	assert.Equal(t, "updateNoteFields", (*seen)[2].Action)
	assert.JSONEq(t, `{"note":{"id":1501,"fields":{"Back":"dog"}}}`, string((*seen)[2].Params))
}

func TestRunUpdateNoMatch(t *testing.T) {
	a, _ := updateTestApp(t, map[string]any{"findNotes": []int64{}})

	err := a.runUpdate(context.Background(), "Spanish", "Front:nadie", map[string]string{"Back": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no note matches")
}

func TestRunUpdateAmbiguousMatch(t *testing.T) {
	a, _ := updateTestApp(t, map[string]any{"findNotes": []int64{1501, 1502}})

	err := a.runUpdate(context.Background(), "Spanish", "tag:verbs", map[string]string{"Back": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "narrow the query")
}

func TestRunUpdateUnknownField(t *testing.T) {
	a, seen := updateTestApp(t, map[string]any{
		"findNotes": []int64{1501},
		"notesInfo": noteInfoResult(1501, map[string]string{"Front": "perro", "Back": "dog"}),
	})

	err := a.runUpdate(context.Background(), "Spanish", "Front:perro", map[string]string{"Meaning": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no field "Meaning"`)

	for _, action := range *seen {
		assert.NotEqual(t, "updateNoteFields", action.Action, "nothing may be written when a field is unknown")
	}
}
