package executor

import (
	"context"
	"log/slog"

	"github.com/taskvault/taskvault-api/internal/domain"
)

// BuiltinRegistry returns the registry of shipped jobs. The transfer
// pipelines behind import/export/clone are pluggable; the built-ins
// acknowledge the work and honor cancellation so the lifecycle is fully
// exercised end to end.
// TODO: replace the built-ins with the image transfer pipeline once the
// storage backend integration lands.
func BuiltinRegistry(logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}

	acknowledge := func(kind string) Job {
		return func(ctx context.Context, task *domain.Task) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger.Info("job acknowledged",
				"job", kind,
				"task_id", task.ID,
				"owner", task.Owner)
			return nil
		}
	}

	return Registry{
		domain.TaskTypeImport: acknowledge("import"),
		domain.TaskTypeExport: acknowledge("export"),
		domain.TaskTypeClone:  acknowledge("clone"),
	}
}
