package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReporter_EmitAndSubscribe(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	ch := pr.Subscribe()
	want := ProgressEvent{
		RunID:   "run-1",
		VideoID: "abc123",
		Stage:   StageWriting,
		Status:  ProgressWorking,
	}

	pr.Emit(want)

	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestProgressReporter_EmitWhenFull_DoesNotBlock(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pr.Emit(ProgressEvent{Stage: StageStoring, Status: ProgressWorking})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked when the channel was full")
	}
}

func TestProgressReporter_Close_ChannelClosed(t *testing.T) {
	pr := NewProgressReporter()
	ch := pr.Subscribe()
	pr.Close()

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageFetching, "fetching"},
		{StageWriting, "writing"},
		{StageEvaluating, "evaluating"},
		{StageStoring, "storing"},
		{StageScheduling, "scheduling"},
		{Stage(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.stage.String())
	}
}

func TestFormatProgress_AllStatuses(t *testing.T) {
	tests := []struct {
		name  string
		event ProgressEvent
		want  string
	}{
		{
			name:  "working",
			event: ProgressEvent{Stage: StageWriting, Status: ProgressWorking},
			want:  "  ● writing...",
		},
		{
			name:  "complete with video",
			event: ProgressEvent{VideoID: "abc123", Stage: StageStoring, Status: ProgressComplete},
			want:  "  ✓ abc123 storing complete",
		},
		{
			name:  "failed",
			event: ProgressEvent{Stage: StageScheduling, Status: ProgressFailed, Message: "boom"},
			want:  "  ✗ scheduling failed: boom",
		},
		{
			name:  "rejected",
			event: ProgressEvent{Stage: StageEvaluating, Status: ProgressRejected, Message: "score 3 below threshold 7"},
			want:  "  ✗ evaluating rejected: score 3 below threshold 7",
		},
		{
			name:  "unknown",
			event: ProgressEvent{Stage: StageFetching, Status: "other"},
			want:  "  ? fetching (unknown status)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatProgress(tt.event))
		})
	}
}
