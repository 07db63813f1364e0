package ingest

import (
	"fmt"
	"strings"

	"github.com/qbench/qbench/internal/schema"
)

// Summary statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Message types.
const (
	MessageSuccess   = "success"
	MessageError     = "error"
	MessageException = "exception"
)

// Message is one line of an upload summary.
type Message struct {
	Text        string `json:"text"`
	MessageType string `json:"message_type"`
}

// Summary is the outcome of an upload as returned to the uploader.
type Summary struct {
	Status     string    `json:"status"`
	TopMessage string    `json:"top_message"`
	Messages   []Message `json:"messages"`
	Schema     string    `json:"schema,omitempty"`

	// RowsRead is the number of data rows in the file.
	RowsRead int `json:"-"`
}

func newSummary() *Summary {
	return &Summary{Status: StatusSuccess, Messages: []Message{}}
}

func (s *Summary) add(messageType, format string, args ...interface{}) {
	s.Messages = append(s.Messages, Message{Text: fmt.Sprintf(format, args...), MessageType: messageType})
}

func (s *Summary) success(format string, args ...interface{}) {
	s.add(MessageSuccess, format, args...)
}

func (s *Summary) failure(format string, args ...interface{}) {
	s.add(MessageError, format, args...)
}

func (s *Summary) exception(format string, args ...interface{}) {
	s.add(MessageException, format, args...)
}

// Count returns how many messages of the given type were recorded.
func (s *Summary) Count(messageType string) int {
	n := 0
	for _, m := range s.Messages {
		if m.MessageType == messageType {
			n++
		}
	}
	return n
}

func validationFailed(problems []schema.Problem, declared schema.Schema) *Summary {
	s := newSummary()
	s.Status = StatusError
	s.TopMessage = "Uploaded file failed schema validation"
	s.Schema = "Schema: " + declared.String()
	for _, p := range problems {
		s.add(p.MessageType, "%s", p.Text)
	}
	return s
}

func unreadable(err error) *Summary {
	s := newSummary()
	s.Status = StatusError
	s.TopMessage = "Uploaded file could not be read"
	s.failure("File Error: %v", err)
	return s
}

// tally is an ordered list of counters rendered into the top message.
type tally struct {
	parts []string
}

func (t *tally) optional(n int, suffix string) {
	if n != 0 {
		t.parts = append(t.parts, fmt.Sprintf(", %d %s", n, suffix))
	}
}

func (t *tally) String() string {
	return strings.Join(t.parts, "")
}

// counts tracks inserted rows per entity for the top message.
type counts struct {
	reports           int
	performanceValues int
	timeValues        int
	compilationSteps  int
	systems           int
	algorithms        int
	solvers           int
	metrics           int
	instances         int
	problems          int
	graphs            int
}

func (c *counts) record(r Recorder) {
	for entity, n := range map[string]int{
		"performance_report":    c.reports,
		"performance_value":     c.performanceValues + c.timeValues,
		"compilation_step":      c.compilationSteps,
		"system":                c.systems,
		"compilation_algorithm": c.algorithms,
		"solver":                c.solvers,
		"performance_metric":    c.metrics,
		"problem_instance":      c.instances,
		"problem":               c.problems,
		"graph":                 c.graphs,
	} {
		if n > 0 {
			r.AddInserted(entity, n)
		}
	}
}
