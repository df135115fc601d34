package speech

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"receptionist-core/internal/contract"
)

const (
	// chunkSize bounds how much audio can be written after a cancellation
	// mark is observed: the loop checks the cancel set before every write.
	chunkSize = 4096

	ProviderFallback = "fallback"
)

// Synthesizer produces an audio stream for one utterance.
type Synthesizer interface {
	Name() string
	Stream(ctx context.Context, req contract.SynthesisRequest) (io.ReadCloser, error)
}

// Service streams synthesized speech to the caller, honoring barge-in
// cancellation between chunks. Provider failure before the first byte
// degrades to a placeholder chunk instead of erroring; written bytes are
// never retracted, so a mid-stream upstream failure simply ends the stream.
type Service struct {
	Primary Synthesizer // nil means fallback-only
	Cancels CancelSet
	Log     *slog.Logger
}

func NewService(primary Synthesizer, cancels CancelSet, log *slog.Logger) *Service {
	if cancels == nil {
		cancels = NewMemoryCancelSet()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{Primary: primary, Cancels: cancels, Log: log}
}

// StreamResult summarizes one synthesis stream for logging.
type StreamResult struct {
	Provider  string
	Bytes     int64
	Cancelled bool
}

// FallbackChunk is the single placeholder chunk written when the synthesis
// provider is unavailable. The orchestrator recognizes the prefix and plays
// silence or a canned apology instead of audio.
func FallbackChunk(utteranceID string) []byte {
	return []byte("[fallback-silence utterance=" + utteranceID + "]")
}

// Open starts the audio stream for the request. It never fails: when the
// primary provider is missing or errors before the first byte, the returned
// stream carries the fallback chunk and the provider name is "fallback".
func (s *Service) Open(ctx context.Context, req contract.SynthesisRequest) (io.ReadCloser, string) {
	if s.Primary == nil {
		return fallbackStream(req.UtteranceID), ProviderFallback
	}
	body, err := s.Primary.Stream(ctx, req)
	if err != nil {
		s.Log.Warn("synthesis provider failed; using fallback chunk",
			"trace_id", req.TraceID,
			"call_id", req.CallID,
			"utterance_id", req.UtteranceID,
			"provider", s.Primary.Name(),
			"err", err,
		)
		return fallbackStream(req.UtteranceID), ProviderFallback
	}
	return body, s.Primary.Name()
}

func fallbackStream(utteranceID string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(string(FallbackChunk(utteranceID))))
}

// StreamTo copies audio from r to w in fixed-size chunks, checking the
// cancel set before each write. A mark stops the stream early without error.
// The mark is cleared once consumed; completed streams also clear so a stale
// stop for a finished utterance cannot leak into a later one.
func (s *Service) StreamTo(ctx context.Context, utteranceID string, w io.Writer, r io.ReadCloser) (StreamResult, error) {
	defer r.Close()
	defer s.clear(ctx, utteranceID)

	var res StreamResult
	buf := make([]byte, chunkSize)
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			cancelled, obsErr := s.Cancels.Observed(ctx, utteranceID)
			if obsErr != nil {
				// Cancel-set outage must not kill live audio; keep streaming.
				s.Log.Warn("cancel set check failed", "utterance_id", utteranceID, "err", obsErr)
			}
			if cancelled {
				res.Cancelled = true
				return res, nil
			}
			written, writeErr := w.Write(buf[:n])
			res.Bytes += int64(written)
			if writeErr != nil {
				return res, writeErr
			}
			flush(w)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return res, nil
		}
		if readErr != nil {
			return res, readErr
		}
	}
}

func (s *Service) clear(ctx context.Context, utteranceID string) {
	if err := s.Cancels.Clear(ctx, utteranceID); err != nil {
		s.Log.Warn("cancel set clear failed", "utterance_id", utteranceID, "err", err)
	}
}

func flush(w io.Writer) {
	if f, ok := w.(interface{ Flush() }); ok {
		f.Flush()
	}
}
