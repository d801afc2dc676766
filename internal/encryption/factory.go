package encryption

import (
	"fmt"

	"etcd-backup-agent/internal/checksum"
	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/errors"
	"etcd-backup-agent/internal/kms"
)

// NewEncryptor builds the configured backend. An unknown method or a
// missing prerequisite is a fatal configuration error; there is no
// silent downgrade to a weaker backend.
func NewEncryptor(cfg *config.Config, keys kms.KeyService, engine *checksum.Engine) (Encryptor, error) {
	switch Method(cfg.Encryption.Method) {
	case MethodNone:
		return NewNoneEncryptor(), nil

	case MethodSymmetric:
		password, err := cfg.EncryptionPassword()
		if err != nil {
			return nil, err
		}
		return NewSymmetricEncryptor(password, engine)

	case MethodKMS:
		if keys == nil {
			var err error
			keys, err = kms.NewAWSKeyService(cfg.Encryption.KMSRegion)
			if err != nil {
				return nil, errors.NewConfigurationError("kms encryption requested but the key service is unavailable", err)
			}
		}
		return NewKMSEncryptor(keys, cfg.Encryption.KMSKeyID, engine)

	default:
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("unknown encryption method %q", cfg.Encryption.Method), nil)
	}
}
