//go:build wireinject
// +build wireinject

package injector

import (
	"github.com/google/wire"

	"github.com/lk2023060901/agent-gateway/internal/conf"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
)

// InitializeApp initializes the application with Wire
func InitializeApp(config *conf.Config, log *logger.Logger) (*App, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
