// Package speech synthesizes audio for spoken lines through an
// OpenAI-compatible text-to-speech API. Synthesis is optional; when no key
// is configured the transport falls back to text-only SAY messages and the
// client platform does its own TTS.
package speech

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Synthesizer wraps an OpenAI-compatible TTS client.
type Synthesizer struct {
	api   *openai.Client
	voice openai.SpeechVoice
}

// New creates a synthesizer. baseURL may point at any OpenAI-compatible
// endpoint; an empty voice defaults to alloy.
func New(baseURL, apiKey, voice string) *Synthesizer {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	v := openai.SpeechVoice(voice)
	if v == "" {
		v = openai.VoiceAlloy
	}
	return &Synthesizer{
		api:   openai.NewClientWithConfig(config),
		voice: v,
	}
}

// Synthesize renders text as MP3 audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("TTS API call: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read TTS response: %w", err)
	}
	return audio, nil
}
