package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MegaGrindStone/askstream/internal/models"
)

// newAnswerServer answers every question by echoing it back in two deltas.
func newAnswerServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Question == "fail" {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: error\ndata: {\"message\":\"boom\"}\n\n")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"delta\":%q}\n\n", "echo ")
		fmt.Fprintf(w, "data: {\"delta\":%q}\n\n", req.Question)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestAskCommand(t *testing.T) {
	srv := newAnswerServer(t)

	out, _, err := execute(t, "", "--url", srv.URL, "ask", "what", "is", "go")
	if err != nil {
		t.Fatalf("ask error = %v", err)
	}
	if want := "echo what is go\n"; out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestAskCommandFailure(t *testing.T) {
	srv := newAnswerServer(t)

	_, errOut, err := execute(t, "", "--url", srv.URL, "ask", "fail")
	if err == nil {
		t.Fatal("ask error = nil, want error")
	}
	if !strings.Contains(errOut, "boom") {
		t.Errorf("errOut = %q, want it to contain %q", errOut, "boom")
	}
}

func TestAskCommandWithoutQuestion(t *testing.T) {
	if _, _, err := execute(t, "", "ask"); err == nil {
		t.Error("ask error = nil, want error")
	}
}

func TestAskCommandAudioWithoutTranscriber(t *testing.T) {
	_, _, err := execute(t, "", "--transcriber-url", "", "--audio", "note.wav", "ask")
	if err == nil || !strings.Contains(err.Error(), "--transcriber-url") {
		t.Errorf("ask error = %v, want missing --transcriber-url", err)
	}
}

func TestREPLCommand(t *testing.T) {
	srv := newAnswerServer(t)

	out, _, err := execute(t, "one\n\ntwo\nthree\n", "--url", srv.URL, "repl")
	if err != nil {
		t.Fatalf("repl error = %v", err)
	}
	if want := "echo one\necho two\necho three\n"; out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}
