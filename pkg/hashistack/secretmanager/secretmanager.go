package secretmanager

import (
	"fmt"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides a Vault client configured from VAULT_ADDR and VAULT_TOKEN.
// config.LoadConfig overlays database, redis and flagsmith secrets from it.
var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

func ProvideVault() (*vault.Client, error) {
	client, err := vault.New(
		vault.WithEnvironment(),
	)
	if err != nil {
		return nil, fmt.Errorf("secretmanager: init vault client: %w", err)
	}

	zap.L().Info("vault client ready", zap.String("addr", client.Configuration().Address))
	return client, nil
}
