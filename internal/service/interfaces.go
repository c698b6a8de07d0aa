package service

import (
	"context"
)

// MealAnalyzer produces a structured safety + nutrition analysis for a meal
// photo. The caption is optional context; the image is the primary evidence.
type MealAnalyzer interface {
	Analyze(ctx context.Context, image []byte, caption string) (*AnalysisResult, error)
}

// MessageSender delivers an outbound chat message. Injected into the pipeline
// and handlers so tests can substitute a fake sender.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// PhotoArchiver stores a copy of an accepted meal photo and returns its
// durable URL.
type PhotoArchiver interface {
	Archive(ctx context.Context, image []byte, key string) (string, error)
}
