package audit

import (
	"github.com/harborline/freightway/internal/audit/repository"
	"github.com/harborline/freightway/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
