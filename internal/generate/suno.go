package generate

import (
	"context"

	"tracksmith/internal/services/suno"
)

// SunoGenerator adapts the Suno client to the Generator interface.
type SunoGenerator struct {
	Client *suno.Client
}

func (g *SunoGenerator) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	return g.Client.Submit(ctx, suno.SubmitRequest{
		Style:        req.Style,
		Title:        req.Title,
		Lyrics:       req.Lyrics,
		Instrumental: req.Instrumental,
	})
}

func (g *SunoGenerator) Poll(ctx context.Context, taskID string) (PollResult, error) {
	status, err := g.Client.Status(ctx, taskID)
	if err != nil {
		return PollResult{}, err
	}
	result := PollResult{Message: status.Message, Raw: status.Raw}
	switch status.State {
	case suno.StateComplete:
		result.State = StateComplete
	case suno.StateFailed:
		result.State = StateFailed
	default:
		result.State = StatePending
	}
	for _, v := range status.Variants {
		result.Variants = append(result.Variants, Variant{
			ID:              v.ID,
			Title:           v.Title,
			AudioURL:        v.AudioURL,
			DurationSeconds: v.DurationSeconds,
		})
	}
	return result, nil
}

func (g *SunoGenerator) Download(ctx context.Context, audioURL, outputPath string) error {
	return g.Client.Download(ctx, audioURL, outputPath)
}
