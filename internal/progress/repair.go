package progress

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// Repair describes what DecodeDocument had to fix
type Repair struct {
	// Reset is set when the input was missing, empty or not a JSON object
	Reset bool
	// Keys lists top-level keys that were absent or had the wrong type
	Keys []string
	// Dropped counts collection entries that were not JSON objects
	Dropped int
}

// Needed reports whether the document should be rewritten
func (r Repair) Needed() bool {
	return r.Reset || len(r.Keys) > 0 || r.Dropped > 0
}

// DecodeDocument parses a persisted document without ever failing. Unknown
// or malformed input yields the canonical empty shape; well-formed
// collections are kept when a sibling has to be replaced, and individual
// entries are decoded field by field so one bad value does not cost the
// whole record.
func DecodeDocument(data []byte) (*Document, Repair) {
	var repair Repair
	doc := NewDocument()

	if len(bytes.TrimSpace(data)) == 0 {
		repair.Reset = true
		return doc, repair
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		repair.Reset = true
		return doc, repair
	}

	if raw, ok := top[keySessions]; !ok || !decodeList(raw, func(obj map[string]json.RawMessage) {
		doc.Sessions = append(doc.Sessions, decodeSession(obj))
	}, &repair.Dropped) {
		repair.Keys = append(repair.Keys, keySessions)
	}

	if raw, ok := top[keyAttempts]; !ok || !decodeList(raw, func(obj map[string]json.RawMessage) {
		doc.Attempts = append(doc.Attempts, decodeAttempt(obj))
	}, &repair.Dropped) {
		repair.Keys = append(repair.Keys, keyAttempts)
	}

	if raw, ok := top[keyQuestions]; !ok || !decodeQuestions(raw, doc, &repair.Dropped) {
		repair.Keys = append(repair.Keys, keyQuestions)
	}

	for k, v := range top {
		if k == keySessions || k == keyAttempts || k == keyQuestions {
			continue
		}
		if doc.Extra == nil {
			doc.Extra = make(map[string]json.RawMessage)
		}
		doc.Extra[k] = v
	}

	return doc, repair
}

// decodeList walks a JSON array of objects. It returns false when raw is not
// an array; non-object elements are skipped and counted.
func decodeList(raw json.RawMessage, each func(map[string]json.RawMessage), dropped *int) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return false
	}
	for _, item := range items {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			*dropped++
			continue
		}
		each(obj)
	}
	return true
}

func decodeQuestions(raw json.RawMessage, doc *Document, dropped *int) bool {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return false
	}

	timed := timedAttemptTotals(doc.Attempts)
	for qid, entry := range entries {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(entry, &obj); err != nil || obj == nil {
			*dropped++
			continue
		}
		doc.Questions[qid] = decodeQuestion(obj, timed[qid])
	}
	return true
}

func decodeAttempt(obj map[string]json.RawMessage) AttemptRecord {
	a := AttemptRecord{
		Timestamp:     stringField(obj, "timestamp"),
		Topic:         stringField(obj, "topic"),
		QuestionID:    stringField(obj, "question_id"),
		Prompt:        stringField(obj, "prompt"),
		StudentAnswer: stringField(obj, "student_answer"),
		Correct:       boolField(obj, "correct"),
		ResponseMs:    millisField(obj, "response_ms"),
	}
	if a.QuestionID == "" && a.Prompt != "" {
		a.QuestionID = QuestionID(a.Prompt)
	}
	return a
}

func decodeSession(obj map[string]json.RawMessage) SessionRecord {
	s := SessionRecord{
		Timestamp: stringField(obj, "timestamp"),
		Topic:     stringField(obj, "topic"),
		Details:   map[string]any{},
	}
	if raw, ok := obj["score"]; ok {
		if f, ok := numberValue(raw); ok {
			s.Score = f
		}
	}
	if raw, ok := obj["details"]; ok {
		var details map[string]any
		if err := json.Unmarshal(raw, &details); err == nil && details != nil {
			s.Details = details
		}
	}
	return s
}

// timedTotal is the count and sum of timed ledger entries for one question
type timedTotal struct {
	count int
	sum   int64
}

func timedAttemptTotals(attempts []AttemptRecord) map[string]timedTotal {
	totals := make(map[string]timedTotal)
	for _, a := range attempts {
		if a.ResponseMs == nil {
			continue
		}
		t := totals[a.QuestionID]
		t.count++
		t.sum += *a.ResponseMs
		totals[a.QuestionID] = t
	}
	return totals
}

func decodeQuestion(obj map[string]json.RawMessage, ledger timedTotal) *QuestionRecord {
	q := &QuestionRecord{
		Prompt:         stringField(obj, "prompt"),
		LastAnswer:     stringField(obj, "last_answer"),
		LastCorrect:    boolField(obj, "last_correct"),
		LastTimestamp:  stringField(obj, "last_timestamp"),
		LastResponseMs: millisField(obj, "last_response_ms"),
		AvgResponseMs:  millisField(obj, "avg_response_ms"),
		Topics:         []string{},
	}
	if n := millisField(obj, "times_asked"); n != nil {
		q.TimesAsked = int(*n)
	}

	if raw, ok := obj["topics"]; ok {
		var topics []any
		if err := json.Unmarshal(raw, &topics); err == nil {
			for _, t := range topics {
				if s, ok := t.(string); ok {
					q.Topics = mergeTopic(q.Topics, s)
				}
			}
		}
	}

	count := millisField(obj, "timed_count")
	total := millisField(obj, "total_response_ms")
	switch {
	case count != nil && *count > 0:
		q.TimedCount = int(*count)
		if total != nil {
			q.TotalResponseMs = *total
		} else if q.AvgResponseMs != nil {
			q.TotalResponseMs = *q.AvgResponseMs * int64(q.TimedCount)
		}
	case q.AvgResponseMs != nil && ledger.count > 0:
		// Written by a producer that did not track timed attempts.
		q.TimedCount = ledger.count
		q.TotalResponseMs = ledger.sum
	case q.AvgResponseMs != nil:
		q.TimedCount = 1
		q.TotalResponseMs = *q.AvgResponseMs
	}
	if q.TimedCount > 0 {
		avg := roundedMean(q.TotalResponseMs, q.TimedCount)
		q.AvgResponseMs = &avg
	}
	return q
}

func stringField(obj map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := obj[key]; ok {
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
	}
	return s
}

func boolField(obj map[string]json.RawMessage, key string) bool {
	var b bool
	if raw, ok := obj[key]; ok {
		if err := json.Unmarshal(raw, &b); err != nil {
			return false
		}
	}
	return b
}

// millisField reads a non-negative integral number. Anything else reads as nil.
func millisField(obj map[string]json.RawMessage, key string) *int64 {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	f, ok := numberValue(raw)
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

func numberValue(raw json.RawMessage) (float64, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// sortedKeys returns the question ids in ascending order
func sortedKeys(questions map[string]*QuestionRecord) []string {
	ids := make([]string, 0, len(questions))
	for id := range questions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
