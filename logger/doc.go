// Package logger provides structured logging for taskchain using zerolog.
//
// Loggers are scoped by component ("pipeline", "executor", "task") and carry
// scheduler fields such as the task name, the job name and the run id:
//
//	log := logger.Get("pipeline")
//	log.Info("run path finished", logger.Fields(logger.FieldTask, "resize", logger.FieldRunPath, "[1 2]"))
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
package logger
