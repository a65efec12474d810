package hostbridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/binding"
	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/docstore/opensearch"
	"github.com/wippyai/hostbridge/eventloop"
	"github.com/wippyai/hostbridge/script"
	"github.com/wippyai/hostbridge/telemetry"
	"github.com/wippyai/hostbridge/wasmhost"
)

// SetLogger installs l as the logger of every package in the module. Each
// logger is named after its package. A nil l restores the no-op loggers.
func SetLogger(l *zap.Logger) {
	named := func(name string) *zap.Logger {
		if l == nil {
			return nil
		}
		return l.Named(name)
	}

	eventloop.SetLogger(named("eventloop"))
	script.SetLogger(named("script"))
	wasmhost.SetLogger(named("wasmhost"))
	bridge.SetLogger(named("bridge"))
	binding.SetLogger(named("binding"))
	telemetry.SetLogger(named("telemetry"))
	opensearch.SetLogger(named("opensearch"))
}
