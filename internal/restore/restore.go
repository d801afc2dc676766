package restore

import (
	"context"
	"fmt"
	"os"

	"etcd-backup-agent/internal/checksum"
	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/encryption"
	"etcd-backup-agent/internal/errors"
	"etcd-backup-agent/internal/kms"
	"etcd-backup-agent/internal/logging"
)

// Options controls a single restore operation
type Options struct {
	// InputPath is the (possibly encrypted) backup artifact
	InputPath string

	// OutputPath receives the decrypted artifact
	OutputPath string

	// Checksum is an explicit expected digest of the input artifact.
	// Takes precedence over any sidecar file.
	Checksum string

	// ChecksumFile is an explicit sidecar path. When neither Checksum
	// nor ChecksumFile is set the conventional <input>.sha256 sidecar
	// is used if present.
	ChecksumFile string
}

// Restorer decrypts backup artifacts back into usable form, verifying
// the artifact digest when one can be resolved.
type Restorer struct {
	cfg    config.Config
	keys   kms.KeyService
	engine *checksum.Engine
	logger *logging.Logger
}

// NewRestorer creates a restorer. The key service may be nil, in which
// case a real KMS client is built on demand for envelope artifacts.
func NewRestorer(cfg config.Config, keys kms.KeyService, logger *logging.Logger) *Restorer {
	return &Restorer{
		cfg:    cfg,
		keys:   keys,
		engine: checksum.NewEngine(logger),
		logger: logger,
	}
}

// Restore decrypts the input artifact to the output path and checks
// the decrypted bytes against the resolved checksum. The encryption
// method is detected from the input file suffix, so a plain
// unencrypted artifact is simply copied.
func (r *Restorer) Restore(ctx context.Context, opts Options) error {
	if _, err := os.Stat(opts.InputPath); err != nil {
		return errors.NewConfigurationError(
			fmt.Sprintf("backup artifact %s is not readable", opts.InputPath), err)
	}

	method := encryption.MethodFromSuffix(opts.InputPath)
	enc, err := r.encryptorFor(method)
	if err != nil {
		return err
	}
	r.logger.WithFields(map[string]interface{}{
		"input":  opts.InputPath,
		"method": string(method),
	}).Info("Restoring backup artifact")

	if err := enc.Decrypt(ctx, opts.InputPath, opts.OutputPath); err != nil {
		os.Remove(opts.OutputPath)
		return err
	}

	info, err := os.Stat(opts.OutputPath)
	if err != nil {
		return errors.NewValidationError("restored artifact is missing", err)
	}
	if info.Size() == 0 {
		os.Remove(opts.OutputPath)
		return errors.NewValidationError("restored artifact is empty", nil)
	}

	if err := r.verifyOutput(opts); err != nil {
		os.Remove(opts.OutputPath)
		return err
	}

	r.logger.Infof("Restored %s (%d bytes)", opts.OutputPath, info.Size())
	return nil
}

// verifyOutput checks the decrypted artifact against the first
// checksum source that resolves. Sidecars carry the plaintext digest,
// so a wrong passphrase surfaces here even when the cipher layer
// produced output without complaint. A run with no resolvable checksum
// proceeds with a warning rather than failing.
func (r *Restorer) verifyOutput(opts Options) error {
	expected, source, err := r.resolveChecksum(opts)
	if err != nil {
		return err
	}
	if expected == "" {
		r.logger.Warnf("No checksum available for %s, skipping integrity check", opts.InputPath)
		return nil
	}

	actual, err := r.engine.FileDigest(opts.OutputPath)
	if err != nil {
		return err
	}
	if actual != expected {
		return errors.NewValidationError(
			fmt.Sprintf("restored %s does not match its expected checksum", opts.OutputPath), nil).
			WithContext("source", source).
			WithContext("expected", expected).
			WithContext("actual", actual)
	}

	r.logger.Debugf("Checksum verified from %s", source)
	return nil
}

func (r *Restorer) resolveChecksum(opts Options) (string, string, error) {
	if opts.Checksum != "" {
		return opts.Checksum, "flag", nil
	}
	if opts.ChecksumFile != "" {
		digest, err := checksum.ReadSidecar(opts.ChecksumFile)
		if err != nil {
			return "", "", err
		}
		return digest, opts.ChecksumFile, nil
	}

	conventional := checksum.SidecarFor(opts.InputPath)
	if _, err := os.Stat(conventional); err != nil {
		return "", "", nil
	}
	digest, err := checksum.ReadSidecar(conventional)
	if err != nil {
		return "", "", err
	}
	return digest, conventional, nil
}

func (r *Restorer) encryptorFor(method encryption.Method) (encryption.Encryptor, error) {
	switch method {
	case encryption.MethodNone:
		return encryption.NewNoneEncryptor(), nil
	case encryption.MethodSymmetric:
		password, err := r.cfg.EncryptionPassword()
		if err != nil {
			return nil, err
		}
		return encryption.NewSymmetricEncryptor(password, r.engine)
	case encryption.MethodKMS:
		restoreCfg := r.cfg
		restoreCfg.Encryption.Method = string(encryption.MethodKMS)
		return encryption.NewEncryptor(&restoreCfg, r.keys, r.engine)
	default:
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("unsupported encryption method %q", method), nil)
	}
}
