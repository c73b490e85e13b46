package config

// Supported LTP system identifiers for export.ltp_system.
const (
	SystemArchivematica = "archivematica"
	SystemARCLib        = "arclib"
)

// Lock modes.
const (
	LockModeMarker    = "marker"
	LockModeExclusive = "exclusive"
)

// Queue backends.
const (
	QueueBackendSQLite = "sqlite"
	QueueBackendRedis  = "redis"
)

// Archivematica SIP lookup strategies.
const (
	SIPStrategyTransferStatus = "transfer_status"
	SIPStrategyIngestStatus   = "ingest_status"
)

const (
	defaultConfigPath         = "~/.config/ltpexport/config.toml"
	defaultStagingDir         = "~/.local/share/ltpexport/staging"
	defaultStateDir           = "~/.local/share/ltpexport"
	defaultLogDir             = "~/.local/share/ltpexport/logs"
	defaultEntityDir          = "~/.local/share/ltpexport/entities"
	defaultSiteName           = "site"
	defaultBatchConcurrency   = 4
	defaultLockPollInterval   = 2
	defaultLockTimeout        = 20
	defaultLockWorkerTimeout  = 120
	defaultTransferField      = "field_transfer_uuid"
	defaultSIPField           = "field_sip_uuid"
	defaultProcessingConfig   = "automated"
	defaultRedisKey           = "ltpexport:export_queue"
	defaultLeaseSeconds       = 3600
	defaultStatusPollInterval = 1
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultBatchSize          = 10
	defaultRequestTimeout     = 60
	defaultAPIBind            = "127.0.0.1:7490"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			EntityDir:  defaultEntityDir,
		},
		Export: Export{
			Enabled:          true,
			SiteName:         defaultSiteName,
			LTPSystem:        SystemArchivematica,
			BatchConcurrency: defaultBatchConcurrency,
		},
		Lock: Lock{
			Mode:          LockModeMarker,
			PollInterval:  defaultLockPollInterval,
			Timeout:       defaultLockTimeout,
			WorkerTimeout: defaultLockWorkerTimeout,
		},
		Archivematica: Archivematica{
			ProcessingConfig: defaultProcessingConfig,
			TransferField:    defaultTransferField,
			SIPField:         defaultSIPField,
			SIPStrategy:      SIPStrategyTransferStatus,
		},
		ARCLib: ARCLib{
			TransferField: defaultTransferField,
			SIPField:      defaultSIPField,
		},
		Queue: Queue{
			Backend:      QueueBackendSQLite,
			RedisKey:     defaultRedisKey,
			LeaseSeconds: defaultLeaseSeconds,
		},
		Worker: Worker{
			StatusPollInterval: defaultStatusPollInterval,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			BatchSize:          defaultBatchSize,
			RequestTimeout:     defaultRequestTimeout,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
