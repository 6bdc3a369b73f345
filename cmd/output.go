package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/advisor"
	"github.com/spigell/programme-advisor/internal/contract"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

// failed logs a pipeline failure and returns the message a caller should see.
func failed(log *zap.Logger, step string, err error) error {
	fields := []zap.Field{zap.Error(err)}
	if failure, ok := contract.AsFailure(err); ok {
		fields = append(fields, zap.String("kind", string(failure.Kind)), zap.Bool("retryable", failure.Retryable()))
	}
	log.Error(step, fields...)

	return errors.New(advisor.UserMessage(err))
}
