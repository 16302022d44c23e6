package transcript

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVideos struct {
	video    *youtube.Video
	videoErr error
	segments youtube.VideoTranscript
	err      error
	gotLang  string
}

func (f *fakeVideos) GetVideoContext(_ context.Context, id string) (*youtube.Video, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return f.video, nil
}

func (f *fakeVideos) GetTranscriptCtx(_ context.Context, _ *youtube.Video, lang string) (youtube.VideoTranscript, error) {
	f.gotLang = lang
	return f.segments, f.err
}

func newFakeYouTube(fake *fakeVideos, language string) *YouTube {
	y := NewYouTube(nil, language)
	y.client = fake
	return y
}

func englishVideo() *youtube.Video {
	return &youtube.Video{
		ID:            "abcDEF12345",
		CaptionTracks: []youtube.CaptionTrack{{LanguageCode: "en", Kind: "asr"}},
	}
}

// TestYouTube_Fetch verifies segments are unescaped and joined with single
// spaces.
func TestYouTube_Fetch(t *testing.T) {
	fake := &fakeVideos{
		video: englishVideo(),
		segments: youtube.VideoTranscript{
			{Text: "Hello  &amp; welcome"},
			{Text: "to the\nshow"},
			{Text: " "},
		},
	}

	text, err := newFakeYouTube(fake, "en").Fetch(context.Background(), "abcDEF12345")
	require.NoError(t, err)
	assert.Equal(t, "Hello & welcome to the show", text)
	assert.Equal(t, "en", fake.gotLang)
}

func TestYouTube_NoCaptions(t *testing.T) {
	fake := &fakeVideos{video: &youtube.Video{ID: "abcDEF12345"}}

	_, err := newFakeYouTube(fake, "en").Fetch(context.Background(), "abcDEF12345")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestYouTube_Failures(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeVideos
	}{
		{"video lookup fails", &fakeVideos{videoErr: errors.New("video is private")}},
		{"transcript disabled", &fakeVideos{video: englishVideo(), err: youtube.ErrTranscriptDisabled}},
		{"empty transcript", &fakeVideos{video: englishVideo(), segments: youtube.VideoTranscript{{Text: "  "}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newFakeYouTube(tt.fake, "en").Fetch(context.Background(), "abcDEF12345")
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestYouTube_InvalidIDMakesNoRequest(t *testing.T) {
	fake := &fakeVideos{videoErr: errors.New("unexpected call")}
	_, err := newFakeYouTube(fake, "en").Fetch(context.Background(), "../x")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.NotContains(t, err.Error(), "unexpected call")
}

func TestYouTube_PickPrefersManualTrack(t *testing.T) {
	y := NewYouTube(nil, "nl")
	got := y.pick([]youtube.CaptionTrack{
		{LanguageCode: "en"},
		{LanguageCode: "nl", Kind: "asr"},
		{LanguageCode: "NL"},
	})
	assert.Equal(t, "NL", got)

	got = y.pick([]youtube.CaptionTrack{{LanguageCode: "en"}, {LanguageCode: "nl", Kind: "asr"}})
	assert.Equal(t, "nl", got)

	got = NewYouTube(nil, "de").pick([]youtube.CaptionTrack{{LanguageCode: "en"}})
	assert.Equal(t, "en", got)
}

func TestDir_Fetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vid1.txt"), []byte("  some\n spoken   words \n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.txt"), []byte(" \n\t"), 0o644))

	text, err := Dir{Path: dir}.Fetch(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, "some spoken words", text)

	_, err = Dir{Path: dir}.Fetch(context.Background(), "blank")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = Dir{Path: dir}.Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestValidateVideoID(t *testing.T) {
	assert.NoError(t, ValidateVideoID("dQw4w9WgXcQ"))
	for _, bad := range []string{"", "../etc/passwd", "a b", "x?y=1"} {
		assert.ErrorIs(t, ValidateVideoID(bad), ErrUnavailable, bad)
	}
}
