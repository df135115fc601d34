package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"receptionist-core/internal/config"
	"receptionist-core/internal/contract"
)

const defaultElevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabsClient streams synthesized audio from the ElevenLabs
// text-to-speech endpoint. The response body is returned as-is so the caller
// can copy it chunk by chunk without buffering the whole utterance.
type ElevenLabsClient struct {
	cfg     config.TTSConfig
	baseURL string
	client  *http.Client
}

func NewElevenLabsClient(cfg config.TTSConfig) *ElevenLabsClient {
	return &ElevenLabsClient{
		cfg:     cfg,
		baseURL: defaultElevenLabsBaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *ElevenLabsClient) Name() string { return "elevenlabs" }

type voiceSettings struct {
	Stability       float64  `json:"stability"`
	SimilarityBoost float64  `json:"similarity_boost"`
	Style           *float64 `json:"style,omitempty"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (c *ElevenLabsClient) Stream(ctx context.Context, req contract.SynthesisRequest) (io.ReadCloser, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs: api key not configured")
	}

	voiceID := req.Voice.VoiceID
	if voiceID == "" {
		voiceID = c.cfg.VoiceID
	}

	settings := voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if req.Voice.Stability != nil {
		settings.Stability = *req.Voice.Stability
	}
	if req.Voice.SimilarityBoost != nil {
		settings.SimilarityBoost = *req.Voice.SimilarityBoost
	}
	settings.Style = req.Voice.Style

	body, err := json.Marshal(ttsRequest{
		Text:          req.Text,
		ModelID:       c.cfg.Model,
		VoiceSettings: settings,
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=%s",
		c.baseURL, url.PathEscape(voiceID), outputFormat(req.Audio))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, detail)
	}
	return resp.Body, nil
}

// outputFormat maps requested audio parameters to the provider's format
// names. Narrowband telephony gets mu-law at 8kHz; everything else is
// wideband PCM unless mp3 is explicitly requested.
func outputFormat(a contract.AudioParams) string {
	switch {
	case a.Format == "mp3":
		return "mp3_44100_128"
	case a.Format == "ulaw" || a.SampleRateHz == 8000:
		return "ulaw_8000"
	default:
		return "pcm_16000"
	}
}
