package container

import (
	"github.com/harborline/freightway/internal/container/repository"
	"github.com/harborline/freightway/internal/container/service"
	"go.uber.org/fx"
)

var Module = fx.Module("container.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
