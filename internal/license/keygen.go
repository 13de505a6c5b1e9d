// internal/license/keygen.go
package license

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sort"

	"github.com/keygen-sh/keygen-go/v3"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	ErrExpired  = errors.New("license has expired")
	ErrNotFound = errors.New("license not found")
)

// Config содержит параметры аккаунта Keygen. Пустой Key отключает проверку.
type Config struct {
	Key     string
	Account string
	Product string
	Token   string
}

// Validator проверяет лицензию через Keygen.sh и привязывает её к машине.
type Validator struct {
	cfg    Config
	logger *zap.Logger

	validate func(ctx context.Context, fingerprint string) (*keygen.License, error)
	activate func(ctx context.Context, l *keygen.License, fingerprint string) (*keygen.Machine, error)
	cron     *cron.Cron
}

// NewValidator настраивает глобальный клиент keygen.
func NewValidator(cfg Config, logger *zap.Logger) *Validator {
	keygen.Account = cfg.Account
	keygen.Product = cfg.Product
	keygen.Token = cfg.Token
	keygen.LicenseKey = cfg.Key

	return &Validator{
		cfg:    cfg,
		logger: logger.Named("license"),
		validate: func(ctx context.Context, fingerprint string) (*keygen.License, error) {
			return keygen.Validate(ctx, fingerprint)
		},
		activate: func(ctx context.Context, l *keygen.License, fingerprint string) (*keygen.Machine, error) {
			return l.Activate(ctx, fingerprint)
		},
	}
}

// Validate проверяет лицензию; при первом запуске на машине активирует её.
func (v *Validator) Validate(ctx context.Context) error {
	v.logger.Info("Validating license", zap.String("key", mask(v.cfg.Key)))

	fingerprint, err := Fingerprint()
	if err != nil {
		return fmt.Errorf("failed to generate machine fingerprint: %w", err)
	}

	lic, err := v.validate(ctx, fingerprint)
	switch {
	case errors.Is(err, keygen.ErrLicenseNotActivated):
		if lic == nil {
			return ErrNotFound
		}
		v.logger.Info("License not activated, attempting activation")
		machine, activateErr := v.activate(ctx, lic, fingerprint)
		if activateErr != nil {
			return fmt.Errorf("failed to activate license: %w", activateErr)
		}
		v.logger.Info("License activated successfully",
			zap.String("machine_id", machine.ID),
			zap.String("fingerprint", fingerprint))

	case errors.Is(err, keygen.ErrLicenseExpired):
		return ErrExpired

	case err != nil:
		return fmt.Errorf("license validation failed: %w", err)
	}

	if lic == nil {
		return ErrNotFound
	}
	v.logger.Info("License validation successful", zap.String("license_id", lic.ID))
	return nil
}

// StartHeartbeat периодически повторяет проверку, чтобы машина оставалась активной.
// Ошибки только логируются.
func (v *Validator) StartHeartbeat(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := v.heartbeat(ctx); err != nil {
			v.logger.Warn("License heartbeat failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid heartbeat schedule %q: %w", spec, err)
	}
	c.Start()
	v.cron = c
	return nil
}

// StopHeartbeat останавливает фоновую проверку.
func (v *Validator) StopHeartbeat() {
	if v.cron != nil {
		<-v.cron.Stop().Done()
	}
}

func (v *Validator) heartbeat(ctx context.Context) error {
	fingerprint, err := Fingerprint()
	if err != nil {
		return err
	}
	if _, err := v.validate(ctx, fingerprint); err != nil {
		return fmt.Errorf("heartbeat failed: %w", err)
	}
	v.logger.Debug("License heartbeat sent successfully")
	return nil
}

// Fingerprint строит отпечаток машины из имени хоста, первого MAC-адреса и ОС.
func Fingerprint() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	var macs []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 && len(iface.HardwareAddr) > 0 {
			macs = append(macs, iface.HardwareAddr.String())
		}
	}
	sort.Strings(macs)

	mac := "none"
	if len(macs) > 0 {
		mac = macs[0]
	}

	hash := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s", hostname, mac, runtime.GOOS)))
	return fmt.Sprintf("%x", hash), nil
}

func mask(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "..."
}
