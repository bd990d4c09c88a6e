// Package log is the logging abstraction used by the hubble client.
//
// The client only needs leveled messages with structured fields, so it
// depends on the small Logger interface below rather than on a concrete
// library. A zerolog adapter backs the CLI; NoopLogger is the library
// default and is handy in tests.
//
//	logger := log.NewZerologAdapter(os.Stderr, zerolog.DebugLevel)
//	client := hubble.NewClient(hubble.NewHTTPClient(), logger)
//
// Request bodies and headers are only ever logged at debug level.
package log
