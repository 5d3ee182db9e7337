package runtime

import "github.com/tetratelabs/wazero/api"

const (
	// HostModuleName is the import module holding host functions. Field
	// names are decimal host function IDs.
	HostModuleName = "mvm_host"
	// SystemModuleName is the import module for VM services.
	SystemModuleName = "mvm"
	// ErrorImportName reports an unrecoverable error: (code i32) -> ().
	ErrorImportName = "error"
	// GCExportName is the optional guest export that collects garbage.
	GCExportName = "mvm_gc"
	// guestModuleName is the name the bytecode image is instantiated under.
	guestModuleName = "guest"
)

var (
	hostParams   = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}
	hostResults  = []api.ValueType{api.ValueTypeI32}
	errorParams  = []api.ValueType{api.ValueTypeI32}
	exportResult = []api.ValueType{api.ValueTypeI64}
)
