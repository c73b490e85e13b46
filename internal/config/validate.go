package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"ltpexport/internal/fieldconfig"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateLock(); err != nil {
		return err
	}
	switch c.Export.LTPSystem {
	case SystemArchivematica:
		if err := c.validateArchivematica(); err != nil {
			return err
		}
	case SystemARCLib:
		if err := c.validateARCLib(); err != nil {
			return err
		}
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateExport() error {
	switch c.Export.LTPSystem {
	case SystemArchivematica, SystemARCLib:
	default:
		return fmt.Errorf("export.ltp_system must be %q or %q (got %q)", SystemArchivematica, SystemARCLib, c.Export.LTPSystem)
	}
	if strings.ContainsAny(c.Export.SiteName, `/\`) {
		return errors.New("export.site_name must not contain path separators")
	}
	if _, err := fieldconfig.Parse(c.Export.FieldConfiguration); err != nil {
		return fmt.Errorf("export.field_configuration: %w", err)
	}
	return nil
}

func (c *Config) validateLock() error {
	switch c.Lock.Mode {
	case LockModeMarker, LockModeExclusive:
	default:
		return fmt.Errorf("lock.mode must be %q or %q", LockModeMarker, LockModeExclusive)
	}
	if c.Lock.WorkerTimeout < c.Lock.Timeout {
		return errors.New("lock.worker_timeout must be at least lock.timeout")
	}
	return nil
}

func (c *Config) validateArchivematica() error {
	am := c.Archivematica
	if err := validateHost("archivematica.host", am.Host); err != nil {
		return err
	}
	if am.Username == "" || am.Password == "" {
		return errors.New("archivematica.api_key_username and archivematica.api_key_password are required. Set LTPEXPORT_AM_USERNAME / LTPEXPORT_AM_PASSWORD or edit the config file")
	}
	switch am.SIPStrategy {
	case SIPStrategyTransferStatus, SIPStrategyIngestStatus:
	default:
		return fmt.Errorf("archivematica.sip_strategy must be %q or %q", SIPStrategyTransferStatus, SIPStrategyIngestStatus)
	}
	return nil
}

func (c *Config) validateARCLib() error {
	arc := c.ARCLib
	if err := validateHost("arclib.host", arc.Host); err != nil {
		return err
	}
	if arc.Username == "" || arc.Password == "" {
		return errors.New("arclib.username and arclib.password are required. Set LTPEXPORT_ARCLIB_USERNAME / LTPEXPORT_ARCLIB_PASSWORD or edit the config file")
	}
	if arc.ProducerProfileID == "" {
		return errors.New("arclib.producer_profile_id must be set")
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case QueueBackendSQLite:
	case QueueBackendRedis:
		if c.Queue.RedisURL == "" {
			return errors.New("queue.redis_url must be set when queue.backend is \"redis\"")
		}
	default:
		return fmt.Errorf("queue.backend must be %q or %q", QueueBackendSQLite, QueueBackendRedis)
	}
	return nil
}

func validateHost(key, host string) error {
	if host == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("%s is required. Edit %s (create with 'ltpexport config init')", key, defaultPath)
	}
	parsed, err := url.Parse(host)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL", key)
	}
	return nil
}
