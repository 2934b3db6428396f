package speechkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
)

const (
	SampleRate = 16000
	Channels   = 1
)

type Handle struct {
	client    stt.Recognizer_RecognizeStreamingClient
	cancel    context.CancelFunc
	languages []string
}

func (h *Handle) Send(content []byte) error {
	var req stt.StreamingRequest
	req.SetChunk(&stt.AudioChunk{
		Data: content,
	})

	return h.client.Send(&req)
}

// SendConfig must precede any audio: 16 kHz mono LINEAR16 PCM
func (h *Handle) SendConfig() error {
	var audioFormatOpts stt.AudioFormatOptions
	audioFormatOpts.SetRawAudio(&stt.RawAudio{
		AudioEncoding:     stt.RawAudio_LINEAR16_PCM,
		SampleRateHertz:   SampleRate,
		AudioChannelCount: Channels,
	})

	var eouClassifier stt.EouClassifierOptions
	eouClassifier.SetDefaultClassifier(&stt.DefaultEouClassifier{
		Type:                       stt.DefaultEouClassifier_DEFAULT,
		MaxPauseBetweenWordsHintMs: 1000,
	})

	recognitionModel := &stt.RecognitionModelOptions{
		Model:       "general",
		AudioFormat: &audioFormatOpts,
	}
	if len(h.languages) > 0 {
		recognitionModel.LanguageRestriction = &stt.LanguageRestrictionOptions{
			RestrictionType: stt.LanguageRestrictionOptions_WHITELIST,
			LanguageCode:    h.languages,
		}
	}

	var req stt.StreamingRequest
	req.SetSessionOptions(&stt.StreamingOptions{
		RecognitionModel: recognitionModel,
		EouClassifier:    &eouClassifier,
	})

	return h.client.Send(&req)
}

// CloseSend tells the recognizer no more audio follows, pending results are still delivered
func (h *Handle) CloseSend() error {
	return h.client.CloseSend()
}

func (h *Handle) Recv() ([]string, error) {
	res, err := h.client.Recv()
	if err != nil {
		return nil, fmt.Errorf("failed to receive stt: %w", err)
	}

	finalEvent := res.GetFinal()
	if finalEvent == nil {
		return nil, nil
	}

	result := make([]string, 0, len(finalEvent.Alternatives))
	for _, alt := range finalEvent.Alternatives {
		text := strings.TrimSpace(alt.Text)
		if text == "" {
			continue
		}

		result = append(result, text)
	}

	return result, nil
}

func (h *Handle) Close() error {
	h.cancel()
	return nil
}
