package audit

import (
	"context"

	"github.com/aisgo/ais-modelcode/logger"

	"go.uber.org/zap"
)

// LogSink 以结构化日志输出审计
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Record(ctx context.Context, e Entry) error {
	fields := []zap.Field{
		zap.String("audit_id", e.ID),
		zap.String("action", string(e.Action)),
		zap.String("entity_type", e.EntityType),
		zap.String("entity_id", e.EntityID),
		zap.Bool("success", e.Success),
	}
	if e.Message != "" {
		fields = append(fields, zap.String("message", e.Message))
	}
	if e.After != nil {
		fields = append(fields, zap.Any("after", e.After))
	}
	s.log.WithContext(ctx).Info("audit", fields...)
	return nil
}
