package chat_test

import (
	"testing"

	"github.com/MegaGrindStone/askstream/internal/chat"
	"github.com/MegaGrindStone/askstream/internal/models"
	"github.com/MegaGrindStone/askstream/internal/stream"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type textStatus struct {
	Role   models.Role
	Text   string
	Status models.Status
}

func textStatuses(msgs []models.Message) []textStatus {
	res := make([]textStatus, len(msgs))
	for i, m := range msgs {
		res[i] = textStatus{Role: m.Role, Text: m.Text, Status: m.Status}
	}
	return res
}

func TestReducer(t *testing.T) {
	tests := []struct {
		name      string
		events    []stream.Event
		finish    bool
		fallback  string
		want      []textStatus
		wantState models.ExchangeState
	}{
		{
			name:   "delta accumulation",
			events: []stream.Event{stream.Delta{Text: "Hel"}, stream.Delta{Text: "lo"}, stream.Done{}},
			want: []textStatus{
				{Role: models.RoleAssistant, Text: "Hello", Status: models.StatusComplete},
			},
			wantState: models.ExchangeComplete,
		},
		{
			name:   "error after partial answer appends a new message",
			events: []stream.Event{stream.Delta{Text: "A"}, stream.ErrorEvent{Message: "boom"}},
			want: []textStatus{
				{Role: models.RoleAssistant, Text: "A", Status: models.StatusStreaming},
				{Role: models.RoleAssistant, Text: "오류: boom", Status: models.StatusErrored},
			},
			wantState: models.ExchangeErrored,
		},
		{
			name:   "events after done are ignored",
			events: []stream.Event{stream.Delta{Text: "A"}, stream.Done{}, stream.Delta{Text: "B"}, stream.ErrorEvent{Message: "late"}},
			want: []textStatus{
				{Role: models.RoleAssistant, Text: "A", Status: models.StatusComplete},
			},
			wantState: models.ExchangeComplete,
		},
		{
			name:      "done without content adds nothing",
			events:    []stream.Event{stream.Done{}},
			want:      []textStatus{},
			wantState: models.ExchangeComplete,
		},
		{
			name:     "done without content with a fallback",
			events:   []stream.Event{stream.Done{}},
			fallback: "(no answer)",
			want: []textStatus{
				{Role: models.RoleAssistant, Text: "(no answer)", Status: models.StatusComplete},
			},
			wantState: models.ExchangeComplete,
		},
		{
			name:   "clean close completes the answer",
			events: []stream.Event{stream.Delta{Text: "A"}},
			finish: true,
			want: []textStatus{
				{Role: models.RoleAssistant, Text: "A", Status: models.StatusComplete},
			},
			wantState: models.ExchangeComplete,
		},
		{
			name:   "streaming until finished",
			events: []stream.Event{stream.Delta{Text: "A"}},
			want: []textStatus{
				{Role: models.RoleAssistant, Text: "A", Status: models.StatusStreaming},
			},
			wantState: models.ExchangeStreaming,
		},
		{
			name:      "dispatched until the first delta",
			events:    []stream.Event{stream.Delta{Text: ""}},
			want:      []textStatus{},
			wantState: models.ExchangeDispatched,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := chat.NewConversation(nil)
			r := chat.NewReducer(conv, tt.fallback)
			for _, ev := range tt.events {
				r.Apply(ev)
			}
			if tt.finish {
				r.Finish()
			}

			if diff := cmp.Diff(tt.want, textStatuses(conv.Messages()), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("messages mismatch (-want +got):\n%s", diff)
			}
			if r.State() != tt.wantState {
				t.Errorf("State() = %s, want %s", r.State(), tt.wantState)
			}
		})
	}
}

func TestReducerFail(t *testing.T) {
	conv := chat.NewConversation(nil)
	r := chat.NewReducer(conv, "")

	if got := r.Fail("connection refused"); got != models.ExchangeErrored {
		t.Fatalf("Fail() = %s, want %s", got, models.ExchangeErrored)
	}
	r.Fail("second failure")

	want := []textStatus{{Role: models.RoleAssistant, Text: "오류: connection refused", Status: models.StatusErrored}}
	if diff := cmp.Diff(want, textStatuses(conv.Messages())); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if r.AnswerID() != "" {
		t.Errorf("AnswerID() = %q, want empty", r.AnswerID())
	}
}
