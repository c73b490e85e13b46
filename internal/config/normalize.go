package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeExport(); err != nil {
		return err
	}
	c.normalizeLock()
	if err := c.normalizeArchivematica(); err != nil {
		return err
	}
	if err := c.normalizeARCLib(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeWorker()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.EntityDir) == "" {
		c.Paths.EntityDir = defaultEntityDir
	}
	if c.Paths.EntityDir, err = expandPath(c.Paths.EntityDir); err != nil {
		return fmt.Errorf("paths.entity_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExport() error {
	c.Export.SiteName = strings.TrimSpace(c.Export.SiteName)
	if c.Export.SiteName == "" {
		c.Export.SiteName = defaultSiteName
	}
	c.Export.LTPSystem = strings.ToLower(strings.TrimSpace(c.Export.LTPSystem))
	if c.Export.LTPSystem == "" {
		c.Export.LTPSystem = SystemArchivematica
	}
	if c.Export.BatchConcurrency <= 0 {
		c.Export.BatchConcurrency = defaultBatchConcurrency
	}
	if file := strings.TrimSpace(c.Export.FieldConfigurationFile); file != "" {
		expanded, err := expandPath(file)
		if err != nil {
			return fmt.Errorf("export.field_configuration_file: %w", err)
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			return fmt.Errorf("export.field_configuration_file: %w", err)
		}
		c.Export.FieldConfigurationFile = expanded
		c.Export.FieldConfiguration = string(data)
	}
	return nil
}

func (c *Config) normalizeLock() {
	c.Lock.Mode = strings.ToLower(strings.TrimSpace(c.Lock.Mode))
	if c.Lock.Mode == "" {
		c.Lock.Mode = LockModeMarker
	}
	if c.Lock.PollInterval <= 0 {
		c.Lock.PollInterval = defaultLockPollInterval
	}
	if c.Lock.Timeout <= 0 {
		c.Lock.Timeout = defaultLockTimeout
	}
	if c.Lock.WorkerTimeout <= 0 {
		c.Lock.WorkerTimeout = defaultLockWorkerTimeout
	}
}

func (c *Config) normalizeArchivematica() error {
	am := &c.Archivematica
	am.Host = strings.TrimRight(strings.TrimSpace(am.Host), "/")
	if am.Host == "" {
		if value, ok := os.LookupEnv("LTPEXPORT_AM_HOST"); ok {
			am.Host = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	am.Username = strings.TrimSpace(am.Username)
	if am.Username == "" {
		if value, ok := os.LookupEnv("LTPEXPORT_AM_USERNAME"); ok {
			am.Username = strings.TrimSpace(value)
		}
	}
	am.Password = strings.TrimSpace(am.Password)
	if am.Password == "" {
		if value, ok := os.LookupEnv("LTPEXPORT_AM_PASSWORD"); ok {
			am.Password = strings.TrimSpace(value)
		}
	}
	var err error
	if strings.TrimSpace(am.BaseURL) == "" {
		am.BaseURL = filepath.Join(c.Paths.StagingDir, SystemArchivematica)
	}
	if am.BaseURL, err = expandPath(am.BaseURL); err != nil {
		return fmt.Errorf("archivematica.base_url: %w", err)
	}
	am.SharedPath = strings.TrimRight(strings.TrimSpace(am.SharedPath), "/")
	am.ProcessingConfig = strings.TrimSpace(am.ProcessingConfig)
	if am.ProcessingConfig == "" {
		am.ProcessingConfig = defaultProcessingConfig
	}
	am.TransferField = strings.TrimSpace(am.TransferField)
	am.SIPField = strings.TrimSpace(am.SIPField)
	am.SIPStrategy = strings.ToLower(strings.TrimSpace(am.SIPStrategy))
	if am.SIPStrategy == "" {
		am.SIPStrategy = SIPStrategyTransferStatus
	}
	return nil
}

func (c *Config) normalizeARCLib() error {
	arc := &c.ARCLib
	arc.Host = strings.TrimRight(strings.TrimSpace(arc.Host), "/")
	if arc.Host == "" {
		if value, ok := os.LookupEnv("LTPEXPORT_ARCLIB_HOST"); ok {
			arc.Host = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	arc.Username = strings.TrimSpace(arc.Username)
	if arc.Username == "" {
		if value, ok := os.LookupEnv("LTPEXPORT_ARCLIB_USERNAME"); ok {
			arc.Username = strings.TrimSpace(value)
		}
	}
	arc.Password = strings.TrimSpace(arc.Password)
	if arc.Password == "" {
		if value, ok := os.LookupEnv("LTPEXPORT_ARCLIB_PASSWORD"); ok {
			arc.Password = strings.TrimSpace(value)
		}
	}
	var err error
	if strings.TrimSpace(arc.BaseURL) == "" {
		arc.BaseURL = filepath.Join(c.Paths.StagingDir, SystemARCLib)
	}
	if arc.BaseURL, err = expandPath(arc.BaseURL); err != nil {
		return fmt.Errorf("arclib.base_url: %w", err)
	}
	if file := strings.TrimSpace(arc.WorkflowFile); file != "" {
		expanded, err := expandPath(file)
		if err != nil {
			return fmt.Errorf("arclib.workflow_file: %w", err)
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			return fmt.Errorf("arclib.workflow_file: %w", err)
		}
		arc.WorkflowFile = expanded
		arc.Workflow = string(data)
	}
	arc.ProducerProfileID = strings.TrimSpace(arc.ProducerProfileID)
	arc.TransferField = strings.TrimSpace(arc.TransferField)
	arc.SIPField = strings.TrimSpace(arc.SIPField)
	return nil
}

func (c *Config) normalizeQueue() {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = QueueBackendSQLite
	}
	c.Queue.RedisURL = strings.TrimSpace(c.Queue.RedisURL)
	if c.Queue.RedisURL == "" {
		if value, ok := os.LookupEnv("LTPEXPORT_REDIS_URL"); ok {
			c.Queue.RedisURL = strings.TrimSpace(value)
		}
	}
	c.Queue.RedisKey = strings.TrimSpace(c.Queue.RedisKey)
	if c.Queue.RedisKey == "" {
		c.Queue.RedisKey = defaultRedisKey
	}
	if c.Queue.LeaseSeconds <= 0 {
		c.Queue.LeaseSeconds = defaultLeaseSeconds
	}
}

func (c *Config) normalizeWorker() {
	if c.Worker.StatusPollInterval <= 0 {
		c.Worker.StatusPollInterval = defaultStatusPollInterval
	}
	if c.Worker.QueuePollInterval <= 0 {
		c.Worker.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Worker.ErrorRetryInterval <= 0 {
		c.Worker.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = defaultBatchSize
	}
	if c.Worker.RequestTimeout <= 0 {
		c.Worker.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("LTPEXPORT_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
