package core

var (
	_ Registry                = (*AdapterRegistry)(nil)
	_ PendingAuthStore        = (*MemoryPendingAuthStore)(nil)
	_ SessionLocker           = (*MemorySessionLocker)(nil)
	_ SessionInvalidator      = (*SessionStore)(nil)
	_ CredentialStore         = (*MemoryCredentialStore)(nil)
	_ CredentialCodec         = JSONCredentialCodec{}
	_ MetricsRecorder         = NopMetricsRecorder{}
	_ RefreshBackoffScheduler = ExponentialBackoffScheduler{}
	_ ConfigProvider          = (*CfgxConfigProvider)(nil)
	_ OptionsResolver         = GoOptionsResolver{}
	_ RawConfigLoader         = staticRawConfigLoader{}
)
