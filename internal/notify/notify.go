// Package notify reports the outcome of an operation to the user.
package notify

import (
	"context"
	"errors"

	"board-tiler/internal/logger"
)

type Notifier interface {
	Info(ctx context.Context, text string) error
	Error(ctx context.Context, text string) error
}

// Console writes notifications to the log.
type Console struct{}

func (Console) Info(_ context.Context, text string) error {
	logger.Info.Println(text)
	return nil
}

func (Console) Error(_ context.Context, text string) error {
	logger.Error.Println(text)
	return nil
}

// Multi fans a notification out to every notifier.
type Multi []Notifier

func (m Multi) Info(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Info(ctx, text))
	}
	return errors.Join(errs...)
}

func (m Multi) Error(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Error(ctx, text))
	}
	return errors.Join(errs...)
}
