package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mockinterview/gateway"
	"mockinterview/report"
	"mockinterview/session"
	"mockinterview/speech"
)

func newHeadless(t *testing.T, out *syncBuffer) (*headless, string) {
	t.Helper()
	srv := newBackendServer(t)
	dir := t.TempDir()
	client := gateway.New(srv.URL)
	input := speech.NewFake()

	ctrl := session.New(client,
		session.WithSpeechInput(input),
		session.WithSilenceDelay(20*time.Millisecond),
		session.WithFileSaver(report.DirSaver{Dir: dir}),
		session.WithEventSink(newConsoleSink(out)),
	)
	t.Cleanup(ctrl.Close)

	return &headless{
		ctrl:    ctrl,
		history: client,
		speech:  input,
		out:     out,
		width:   60,
		timeout: 5 * time.Second,
	}, dir
}

func writeResume(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644))
	return path
}

func TestHeadlessFullInterview(t *testing.T) {
	var out syncBuffer
	h, dir := newHeadless(t, &out)
	resume := writeResume(t)

	script := strings.Join([]string{
		"# spoken and typed answers",
		"DOMAIN Go Backend",
		"DIFFICULTY Medium",
		"START " + resume,
		"STATUS",
		"MIC",
		"SAY I design APIs",
		"WAIT_IDLE",
		"ANSWER I also write tests",
		"END",
		"REPORT",
		"SAVE",
		"HISTORY",
		"RESET",
		"STATUS",
		"QUIT",
		"STATUS",
	}, "\n")

	require.NoError(t, h.run(context.Background(), strings.NewReader(script)))

	got := out.String()
	assert.Contains(t, got, `phase=chat status="Interview Started." listening=false messages=1`)
	assert.Contains(t, got, "Role: Go Backend")
	assert.Contains(t, got, "Technical: 7/10")
	assert.Contains(t, got, "- skipped failure modes")
	assert.Contains(t, got, "saved: "+filepath.Join(dir, "Report_"))
	assert.Contains(t, got, "Your progress")
	assert.Contains(t, got, `phase=setup status="Idle" listening=false messages=0`)
	assert.Equal(t, 2, strings.Count(got, "phase="), "commands after QUIT are not run")
	assert.NotContains(t, got, "error:")

	assert.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "[user] I design APIs") && strings.Contains(s, "[user] I also write tests")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHeadlessErrorsKeepGoing(t *testing.T) {
	var out syncBuffer
	h, _ := newHeadless(t, &out)

	script := "START resume.docx\nBOGUS\nSAY hello\nSLEEP soon\nANSWER hi\nSTATUS\n"
	require.NoError(t, h.run(context.Background(), strings.NewReader(script)))

	got := out.String()
	assert.Contains(t, got, "error: "+session.ErrNotPDF.Error())
	assert.Contains(t, got, `error: unknown command "BOGUS"`)
	assert.Contains(t, got, "not listening")
	assert.Contains(t, got, "error: SLEEP wants milliseconds")
	assert.Contains(t, got, "error: "+session.ErrNoSession.Error())
	assert.Contains(t, got, "phase=setup")
}

func TestHeadlessSayWithoutRecognizer(t *testing.T) {
	var out syncBuffer
	h := &headless{ctrl: session.New(&stubBackend{}), out: &out}
	t.Cleanup(h.ctrl.(*session.Controller).Close)

	require.NoError(t, h.run(context.Background(), strings.NewReader("SAY hi\nHISTORY\n")))
	assert.Contains(t, out.String(), "error: no scripted recognizer")
	assert.Contains(t, out.String(), emptyHistory)
}

func TestHeadlessStopsOnCancel(t *testing.T) {
	var out syncBuffer
	h, _ := newHeadless(t, &out)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.run(ctx, strings.NewReader("SLEEP 5000\nSTATUS\n"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, out.String(), "phase=")
}

func TestIdle(t *testing.T) {
	pending := []session.Message{{ID: session.PendingID, Role: gateway.RoleUser, Content: "so"}}
	tests := []struct {
		name string
		snap session.Snapshot
		want bool
	}{
		{"idle", session.Snapshot{Status: session.StatusIdle}, true},
		{"thinking", session.Snapshot{Status: session.StatusThinking}, false},
		{"uploading", session.Snapshot{Status: session.StatusUploading}, false},
		{"generating", session.Snapshot{Status: session.StatusGenerating}, false},
		{"utterance pending", session.Snapshot{Status: session.StatusYourTurn, Messages: pending}, false},
		{"send failed", session.Snapshot{Status: session.StatusSendError, Messages: pending}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idle(tt.snap))
		})
	}
}
