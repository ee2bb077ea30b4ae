package media

import (
	"context"
	"fmt"
	"log"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

// GoogleASR transcribes learner recordings through the Google Cloud
// Speech-to-Text API. Best-effort: any failure is logged and reported as
// empty text so that grading treats the answer as incorrect instead of
// failing the request.
type GoogleASR struct {
	client *speech.Client
}

func NewGoogleASR(ctx context.Context) (*GoogleASR, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("media: speech client: %w", err)
	}
	return &GoogleASR{client: client}, nil
}

func (g *GoogleASR) Close() error {
	return g.client.Close()
}

// Transcribe recognizes short audio (a single spoken answer). The encoding
// is left unspecified so the API reads it from the container header.
func (g *GoogleASR) Transcribe(ctx context.Context, audio []byte, langCode string) string {
	if len(audio) == 0 {
		return ""
	}
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode: langCode,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}
	resp, err := g.client.Recognize(ctx, req)
	if err != nil {
		log.Printf("Transcription failed (lang=%s): %v", langCode, err)
		return ""
	}
	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, result.Alternatives[0].Transcript)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
